package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
)

func baseConfig() *Config {
	return &Config{
		ClientSettings: ClientSettings{LocalHost: "127.0.0.1", Port: "6138"},
		Chains: map[string]chains.Override{
			"ethereum": {RPCURLs: []string{"https://ethereum-rpc.publicnode.com", "https://old.infura.io/v3/stale"}},
		},
	}
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"QA_ENV", EnvAPIURL, EnvAgentURL, EnvPairToken, EnvRedisAddr, EnvKafkaBrokers, EnvTronAPIKey, EnvInfuraAPIKey} {
		t.Setenv(k, "")
	}
}

func TestApplyAPIURLFromEnv(t *testing.T) {
	cases := []struct {
		env, explicit, file, want string
	}{
		{"", "", "", "https://api.quantumauth.io/quantum-pay/v1"},
		{"", "", "https://staging.example/v1", "https://staging.example/v1"},
		{"local", "", "https://staging.example/v1", "http://localhost:1042/quantum-pay/v1"},
		{"develop", "", "", "https://dev.api.quantumauth.io/quantum-pay/v1"},
		{"dev", "http://127.0.0.1:9000", "", "http://127.0.0.1:9000"},
	}
	for _, tc := range cases {
		t.Run(tc.env+"|"+tc.explicit+"|"+tc.file, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("QA_ENV", tc.env)
			t.Setenv(EnvAPIURL, tc.explicit)

			c := baseConfig()
			c.Payments.APIURL = tc.file
			require.NoError(t, c.ApplyAPIURLFromEnv())
			require.Equal(t, tc.want, c.Payments.APIURL)
		})
	}

	clearEnv(t)
	t.Setenv("QA_ENV", "staging")
	require.Error(t, baseConfig().ApplyAPIURLFromEnv())
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAgentURL, "http://127.0.0.1:7000")
	t.Setenv(EnvPairToken, " tok ")
	t.Setenv(EnvRedisAddr, "127.0.0.1:6379, 127.0.0.1:6380,")
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092")
	t.Setenv(EnvTronAPIKey, "tron-key")
	t.Setenv(EnvInfuraAPIKey, "abc")

	c := baseConfig()
	require.NoError(t, c.ApplyEnv())
	require.Equal(t, "http://127.0.0.1:7000", c.Agent.URL)
	require.Equal(t, "tok", c.Agent.PairingToken)
	require.Equal(t, []string{"127.0.0.1:6379", "127.0.0.1:6380"}, c.Directory.RedisAddrs)
	require.Equal(t, []string{"kafka-1:9092"}, c.Kafka.Brokers)
	require.Equal(t, "tron-key", c.TronConfig().APIKey)

	require.Equal(t, []string{"https://mainnet.infura.io/v3/abc", "https://ethereum-rpc.publicnode.com"}, c.Chains["ethereum"].RPCURLs)
	require.Equal(t, []string{"https://polygon-mainnet.infura.io/v3/abc"}, c.Chains["polygon"].RPCURLs)
	_, ok := c.Chains["bsc"]
	require.False(t, ok)

	reg, err := chains.Default().WithOverrides(c.Chains)
	require.NoError(t, err)
	d, err := reg.Get(chains.Polygon)
	require.NoError(t, err)
	require.Equal(t, "https://polygon-mainnet.infura.io/v3/abc", d.RPCURLs[0])
}

func TestValidate(t *testing.T) {
	c := baseConfig()
	c.Payments.APIURL = "https://api.quantumauth.io/quantum-pay/v1"
	require.NoError(t, c.Validate())

	bad := *c
	bad.ClientSettings.LocalHost = "0.0.0.0"
	require.ErrorContains(t, bad.Validate(), "loopback")

	bad = *c
	bad.ClientSettings.Port = ""
	require.Error(t, bad.Validate())

	bad = *c
	bad.Payments.APIURL = ""
	require.Error(t, bad.Validate())

	bad = *c
	bad.Chains = map[string]chains.Override{"solana": {}}
	require.Error(t, bad.Validate())
}

func TestValidateAgentURLIsNotOwnListener(t *testing.T) {
	c := baseConfig()
	c.Payments.APIURL = "https://api.quantumauth.io/quantum-pay/v1"

	for _, agent := range []string{"http://127.0.0.1:6137", "http://localhost:6137/", "http://10.0.0.5:6138", ""} {
		c.Agent.URL = agent
		require.NoError(t, c.Validate(), agent)
	}
	for _, agent := range []string{"http://127.0.0.1:6138", "http://localhost:6138", "http://[::1]:6138/"} {
		c.Agent.URL = agent
		require.ErrorContains(t, c.Validate(), "own listen address", agent)
	}

	c.Agent.URL = "127.0.0.1:6137"
	require.Error(t, c.Validate())
}

func TestShippedConfigKeepsAgentPortFree(t *testing.T) {
	require.Contains(t, string(EmbeddedConfigYAML), `Port: "6138"`)
	require.Contains(t, string(EmbeddedConfigYAML), `URL: "http://127.0.0.1:6137"`)
	require.NotContains(t, string(EmbeddedConfigYAML), "0x3c3b")
}

func TestEmbeddedConfigPresent(t *testing.T) {
	require.Contains(t, string(EmbeddedConfigYAML), "ClientSettings:")
	require.Contains(t, string(EmbeddedConfigYAML), "Directory:")
}
