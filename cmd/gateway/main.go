package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"voting-gateway/api"
	"voting-gateway/ledger"
	"voting-gateway/service"
	"voting-gateway/store"
)

type options struct {
	Listen     string `long:"listen" env:"GATEWAY_LISTEN" default:":8080" description:"Address for the gateway HTTP API"`
	StoreURL   string `long:"storeurl" env:"STORE_URL" required:"true" description:"Base URL of the authoritative store API"`
	EthRPC     string `long:"ethrpc" env:"ETH_RPC_URL" required:"true" description:"Ethereum JSON-RPC endpoint"`
	Contract   string `long:"contract" env:"VOTING_CONTRACT_ADDRESS" required:"true" description:"Deployed VotingSystem contract address"`
	ChainID    int64  `long:"chainid" env:"ETH_CHAIN_ID" default:"31337" description:"Ethereum chain id"`
	PrivateKey string `long:"ethkey" env:"ETH_PRIVATE_KEY" required:"true" description:"Hex private key funding ledger transactions"`
	Debug      bool   `long:"debug" env:"GATEWAY_DEBUG" description:"Enable debug logging"`
}

// setupLogging installs a slog logger per subsystem and returns the main
// process logger.
func setupLogging(debug bool) slog.Logger {
	backend := slog.NewBackend(os.Stdout)
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	for tag, use := range map[string]func(slog.Logger){
		"API ": api.UseLogger,
		"STOR": store.UseLogger,
		"LEDG": ledger.UseLogger,
		"SRVC": service.UseLogger,
	} {
		l := backend.Logger(tag)
		l.SetLevel(level)
		use(l)
	}

	logger := backend.Logger("MAIN")
	logger.SetLevel(level)
	return logger
}

func run() error {
	// A .env file is a convenience for local development; all settings are
	// plain flags/env vars.
	_ = godotenv.Load()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) && fe.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	logger := setupLogging(opts.Debug)

	storeClient, err := store.New(store.Config{BaseURL: opts.StoreURL})
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	ledgerClient, err := ledger.Dial(dialCtx, ledger.Config{
		RPCURL:          opts.EthRPC,
		ContractAddress: opts.Contract,
		PrivateKey:      opts.PrivateKey,
		ChainID:         opts.ChainID,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("ledger client: %w", err)
	}
	defer ledgerClient.Close()

	srv := api.New(api.Config{
		Directory:   storeClient,
		Coordinator: service.NewCoordinator(storeClient, ledgerClient),
		Verifier:    service.NewVerifier(storeClient, ledgerClient),
	})

	httpServer := &http.Server{
		Addr:         opts.Listen,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // ledger writes wait for mining
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Voting gateway listening on %v", opts.Listen)
		errc <- httpServer.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		logger.Infof("Received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}
