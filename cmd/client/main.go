package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmalikova/caseline/internal/client"
	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/gateway"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/service"
	"github.com/nmalikova/caseline/internal/store"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewClientLogger("caseline-client")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	probe, err := gateway.NewDialProbe(cfg.Gateway.Address, 2*time.Second, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("create connectivity probe")
	}

	tokens := func() string { return cfg.Session.Token }
	gw, err := gateway.NewHTTPGateway(cfg.Gateway, probe, tokens, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create network gateway")
	}

	storages, err := store.NewStorages(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}

	services := service.NewServices(storages, gw, cfg, log)

	app, err := client.NewApp(services, storages, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init client app error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("client run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
