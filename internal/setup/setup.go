package setup

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"

	clientconfig "github.com/quantumauth-io/quantum-pay-client/cmd/quantum-pay-client/config"
	"github.com/quantumauth-io/quantum-pay-client/internal/balance"
	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
	"github.com/quantumauth-io/quantum-pay-client/internal/confirm"
	"github.com/quantumauth-io/quantum-pay-client/internal/connection"
	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
	"github.com/quantumauth-io/quantum-pay-client/internal/directory"
	"github.com/quantumauth-io/quantum-pay-client/internal/events"
	clienthttp "github.com/quantumauth-io/quantum-pay-client/internal/http"
	"github.com/quantumauth-io/quantum-pay-client/internal/notify"
	"github.com/quantumauth-io/quantum-pay-client/internal/payment"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/session"
	"github.com/quantumauth-io/quantum-pay-client/internal/transfer"
	"github.com/quantumauth-io/quantum-pay-client/internal/tron"
)

const shutdownTimeout = 10 * time.Second

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

func Run(ctx context.Context, build BuildInfo) error {
	log.Info("quantum-pay-client",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	// ---- Config
	cfg, err := clientconfig.Load()
	if err != nil {
		return err
	}

	registry, err := chains.Default().WithOverrides(cfg.Chains)
	if err != nil {
		return err
	}

	// ---- Session
	store, err := session.OpenDefaultFileStore()
	if err != nil {
		return err
	}
	log.Info("session store", "path", store.Path())

	machine := session.NewMachine(store, sessionMetrics, sessionLog)
	go machine.Run(ctx)

	// ---- Wallets
	globals, link, closeWallets, err := injectedFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeWallets()

	feed := notify.NewFeed(0)
	notifier := notify.Multi(feed, notify.Log{})

	resolver := provider.NewResolver(provider.NewInjected(globals), constants.ProviderName, cfg.ClientSettings.GuardedPaths)
	bridge := events.NewBridge(machine, registry, resolver, notifier)
	defer bridge.Detach()

	manager := connection.NewManager(resolver, machine, registry,
		connection.WithListener(bridge),
		connection.WithNotifier(notifier),
		connection.WithTimeout(cfg.ClientSettings.ConnectTimeout),
	)

	// ---- TRON node, optional: EVM payments work without it
	var node tron.Node
	tronClient, err := tron.Dial(cfg.TronConfig())
	if err != nil {
		log.Warn("tron node unavailable, tron payments disabled", "error", err)
	} else {
		node = tronClient
		defer tronClient.Close()
	}

	// ---- Company wallets
	cache, closeCache, err := directoryCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	companies, err := directory.New(cfg.DirectoryConfig(), registry, cache, nil)
	if err != nil {
		return err
	}

	// ---- Payments
	reporter, closeReporter := reporterFromConfig(cfg)
	defer closeReporter()

	switcher := chains.NewSwitcher(registry, notifier)
	reader := balance.NewReader(registry, node)
	sender := transfer.NewSender(registry, companies, node)
	poller := confirm.NewPoller(cfg.ConfirmConfig(), registry, node)
	checkout := payment.NewCheckout(manager, registry, switcher, reader, sender, poller, reporter, notifier)

	if s, ok := manager.Restore(ctx, provider.Context{Path: cfg.ClientSettings.RestorePath}); ok {
		log.Info("wallet session restored", "address", s.Address, "chain", s.ChainKey)
	}

	// ---- HTTP server
	deps := clienthttp.Deps{
		Wallets:  manager,
		Registry: registry,
		Switcher: switcher,
		Balances: reader,
		Checkout: checkout,
		Poller:   poller,
		Feed:     feed,
	}
	if link != nil {
		deps.Pairing = link
	}
	srv := clienthttp.NewServer(deps, cfg.ClientSettings.AllowedOrigins)

	server, err := srv.HTTPServer(cfg.ClientSettings.LocalHost, cfg.ClientSettings.Port)
	if err != nil {
		return err
	}

	return serve(ctx, server)
}

// serve runs server until ctx ends, then shuts it down gracefully. A listen
// failure such as a port already taken is returned at once.
func serve(ctx context.Context, server *http.Server) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			serveErr <- serr
		}
		close(serveErr)
	}()

	select {
	case serr := <-serveErr:
		log.Error("HTTP server error", "addr", server.Addr, "error", serr)
		return serr
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("HTTP server shutdown failed", "error", serr)
	} else {
		log.Info("HTTP server gracefully stopped")
	}
	return nil
}
