package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/directory"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/securefile"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

const (
	EnvAPIURL       = "QA_PAY_API_URL"
	EnvAgentURL     = "QA_PAY_AGENT_URL"
	EnvPairToken    = "QA_PAY_PAIR_TOKEN"
	EnvRedisAddr    = "QA_PAY_REDIS_ADDR"
	EnvKafkaBrokers = "QA_PAY_KAFKA_BROKERS"
	EnvTronAPIKey   = "TRON_PRO_API_KEY"
	EnvInfuraAPIKey = "INFURA_API_KEY"
)

type ClientSettings struct {
	LocalHost      string
	Port           string
	AllowedOrigins []string
	GuardedPaths   []string
	// RestorePath is the page context the start-up session restore runs under.
	RestorePath    string
	ConnectTimeout time.Duration
}

type AgentSettings struct {
	URL          string
	PairingToken string
	Origin       string
	Timeout      time.Duration
}

type PaymentSettings struct {
	APIURL        string
	ReportTimeout time.Duration
}

type DirectorySettings struct {
	TTL           time.Duration
	FetchTimeout  time.Duration
	FailClosed    bool
	Fallback      map[string]string
	RedisAddrs    []string
	RedisPassword string
	Namespace     string
}

type TronSettings struct {
	Endpoint string
	APIKey   string
	FeeLimit int64
	Timeout  time.Duration
}

type ConfirmSettings struct {
	MaxWait           time.Duration
	Interval          time.Duration
	RequestsPerSecond float64
}

type KafkaSettings struct {
	Brokers []string
	Topic   string
}

type Config struct {
	ClientSettings ClientSettings
	Agent          AgentSettings
	Payments       PaymentSettings
	Directory      DirectorySettings
	Tron           TronSettings
	Confirm        ConfirmSettings
	Kafka          KafkaSettings
	Chains         map[string]chains.Override
}

func infuraRPC(network, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", network, key)
}

// infuraNetworks maps chain keys to their Infura subdomain. BSC is not served.
var infuraNetworks = map[chains.Key]string{
	chains.Ethereum: "mainnet",
	chains.Polygon:  "polygon-mainnet",
}

// Load reads .env, the first config.yaml found (falling back to the embedded
// one), then applies environment overrides and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not read .env", "error", err)
	}

	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", "quantum-pay-client"),
		filepath.Join(home, "config"),
		".",
	}

	cfg, err := utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv layers environment variables over the file config.
func (c *Config) ApplyEnv() error {
	if err := c.ApplyAPIURLFromEnv(); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv(EnvAgentURL)); v != "" {
		c.Agent.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPairToken)); v != "" {
		c.Agent.PairingToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		c.Directory.RedisAddrs = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvKafkaBrokers)); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTronAPIKey)); v != "" {
		c.Tron.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInfuraAPIKey)); v != "" {
		c.InjectInfuraKey(v)
	}
	return nil
}

// ApplyAPIURLFromEnv picks the backend for QA_ENV. An explicit
// QA_PAY_API_URL wins over both the environment default and the file.
func (c *Config) ApplyAPIURLFromEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.Payments.APIURL = v
		return nil
	}

	folder, err := securefile.QaEnvFolder()
	if err != nil {
		return err
	}
	if c.Payments.APIURL != "" && folder == "" {
		return nil
	}

	switch folder {
	case "local":
		c.Payments.APIURL = "http://localhost:1042/quantum-pay/v1"
	case "develop":
		c.Payments.APIURL = "https://dev.api.quantumauth.io/quantum-pay/v1"
	default:
		c.Payments.APIURL = "https://api.quantumauth.io/quantum-pay/v1"
	}
	return nil
}

// InjectInfuraKey puts an Infura endpoint first in the RPC list of every chain Infura serves.
func (c *Config) InjectInfuraKey(key string) {
	if c.Chains == nil {
		c.Chains = map[string]chains.Override{}
	}
	for k, network := range infuraNetworks {
		o := c.Chains[string(k)]
		rpc := infuraRPC(network, key)
		rpcs := []string{rpc}
		for _, u := range o.RPCURLs {
			if !strings.Contains(u, ".infura.io/") {
				rpcs = append(rpcs, u)
			}
		}
		o.RPCURLs = rpcs
		// write back, map values are copies
		c.Chains[string(k)] = o
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientSettings.Port) == "" {
		return errors.New("ClientSettings.Port is required")
	}
	if !isLoopback(c.ClientSettings.LocalHost) {
		return errors.Newf("ClientSettings.LocalHost must be a loopback host, got %q", c.ClientSettings.LocalHost)
	}
	if strings.TrimSpace(c.Payments.APIURL) == "" {
		return errors.New("Payments.APIURL is required")
	}
	if err := c.validateAgentURL(); err != nil {
		return err
	}
	for k := range c.Chains {
		if _, err := chains.ParseKey(k); err != nil {
			return errors.Wrap(err, "Chains")
		}
	}
	if c.Confirm.RequestsPerSecond < 0 {
		return errors.New("Confirm.RequestsPerSecond must not be negative")
	}
	if c.Tron.FeeLimit < 0 {
		return errors.New("Tron.FeeLimit must not be negative")
	}
	return nil
}

// validateAgentURL refuses an agent URL that points back at this client's
// own listener, which would make every wallet call hit the local API.
func (c *Config) validateAgentURL() error {
	raw := strings.TrimSpace(c.Agent.URL)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return errors.Newf("Agent.URL %q is not an absolute URL", raw)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if port == strings.TrimSpace(c.ClientSettings.Port) && isLoopback(u.Hostname()) {
		return errors.Newf("Agent.URL %s points at this client's own listen address %s", raw,
			net.JoinHostPort(c.ClientSettings.LocalHost, c.ClientSettings.Port))
	}
	return nil
}

func isLoopback(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) AgentConfig() provider.AgentConfig {
	return provider.AgentConfig{
		BaseURL:      c.Agent.URL,
		PairingToken: c.Agent.PairingToken,
		Origin:       c.Agent.Origin,
		Timeout:      c.Agent.Timeout,
	}
}

func (c *Config) DirectoryConfig() directory.Config {
	return directory.Config{
		APIURL:       c.Payments.APIURL,
		TTL:          c.Directory.TTL,
		FetchTimeout: c.Directory.FetchTimeout,
		FailClosed:   c.Directory.FailClosed,
		Fallback:     c.Directory.Fallback,
	}
}

func (c *Config) TronConfig() tron.Config {
	return tron.Config{
		Endpoint: c.Tron.Endpoint,
		APIKey:   c.Tron.APIKey,
		FeeLimit: c.Tron.FeeLimit,
		Timeout:  c.Tron.Timeout,
	}
}

func (c *Config) ConfirmConfig() confirm.Config {
	return confirm.Config{
		MaxWait:           c.Confirm.MaxWait,
		Interval:          c.Confirm.Interval,
		RequestsPerSecond: c.Confirm.RequestsPerSecond,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
