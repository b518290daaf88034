package setup

import (
	"context"
	"net/http"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/redis/go-redis/v9"

	clientconfig "github.com/quantumauth-io/quantum-pay-client/cmd/quantum-pay-client/config"
	"github.com/quantumauth-io/quantum-pay-client/internal/directory"
	"github.com/quantumauth-io/quantum-pay-client/internal/metrics"
	"github.com/quantumauth-io/quantum-pay-client/internal/pairing"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/report"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
)

func sessionMetrics(_, next session.WalletSession) {
	all := make([]string, 0, len(session.Statuses))
	for _, s := range session.Statuses {
		all = append(all, string(s))
	}
	metrics.SetSessionStatus(string(next.Status), all...)
}

func sessionLog(prev, next session.WalletSession) {
	if prev.Status != next.Status {
		log.Info("wallet session", "from", prev.Status, "to", next.Status, "address", next.Address, "chain", next.ChainKey)
	}
}

// injectedFromConfig exposes the paired agent's wallets. Without an agent
// URL nothing is injected and every connect reports the wallet as missing.
// The returned link lets the local API re-pair without a restart.
func injectedFromConfig(cfg *clientconfig.Config) (provider.Globals, *pairing.Link, func(), error) {
	if cfg.Agent.URL == "" {
		log.Warn("no wallet agent configured")
		return provider.Globals{}, nil, func() {}, nil
	}
	store, err := pairing.OpenDefaultStore()
	if err != nil {
		return provider.Globals{}, nil, nil, err
	}
	token, err := pairing.Resolve(cfg.Agent.PairingToken, cfg.Agent.URL, store)
	if err != nil {
		log.Warn("wallet agent not paired, POST /pairing to pair", "agent", cfg.Agent.URL, "pairing_file", store.Path())
	}

	agentCfg := cfg.AgentConfig()
	agentCfg.Token = provider.NewAgentToken(token)

	evm, err := provider.NewAgentWallet(agentCfg)
	if err != nil {
		return provider.Globals{}, nil, nil, err
	}
	tw, err := provider.NewAgentTronWallet(agentCfg)
	if err != nil {
		evm.Close()
		return provider.Globals{}, nil, nil, err
	}
	link := pairing.NewLink(store, cfg.Agent.URL, agentCfg.Token)
	return provider.Globals{Dedicated: evm, Tron: tw}, link, evm.Close, nil
}

// directoryCache uses Redis when addresses are configured, memory otherwise.
// A configured but unreachable Redis is a startup error.
func directoryCache(ctx context.Context, cfg *clientconfig.Config) (directory.Cache, func(), error) {
	if len(cfg.Directory.RedisAddrs) == 0 {
		return directory.NewMemoryCache(), func() {}, nil
	}
	client, err := directory.DialRedis(ctx, cfg.Directory.RedisAddrs, cfg.Directory.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	log.Info("directory cache on redis", "addrs", cfg.Directory.RedisAddrs)
	return directory.NewRedisCache(client, cfg.Directory.Namespace), func() { closeRedis(client) }, nil
}

func closeRedis(c redis.UniversalClient) {
	if err := c.Close(); err != nil {
		log.Error("redis close failed", "error", err)
	}
}

func reporterFromConfig(cfg *clientconfig.Config) (*report.Reporter, func()) {
	var hc *http.Client
	if cfg.Payments.ReportTimeout > 0 {
		hc = &http.Client{Timeout: cfg.Payments.ReportTimeout}
	}
	r := report.NewReporter().With("api", report.NewHTTPReporter(cfg.Payments.APIURL, hc))

	if len(cfg.Kafka.Brokers) == 0 {
		return r, func() {}
	}
	k := report.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	return r.With("kafka", k), func() {
		if err := k.Close(); err != nil {
			log.Error("kafka publisher close failed", "error", err)
		}
	}
}
