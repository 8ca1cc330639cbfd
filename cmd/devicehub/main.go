package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AlibekovAA/devicehub/internal/common/bootstrap"
	"github.com/AlibekovAA/devicehub/internal/common/config"
	srv "github.com/AlibekovAA/devicehub/internal/common/server"
)

func main() {
	log, err := bootstrap.InitializeLogger("devicehub")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	app, err := bootstrap.NewApp(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("failed to start devicehub: %v", err)
	}
	defer app.Close()

	server := srv.NewServer(cfg.HTTPPort, cfg.Server, app.Handler)

	if err := srv.StartWithGracefulShutdownAndHooks(server, log, "devicehub", app.ShutdownHooks()); err != nil {
		log.Errorf("devicehub stopped with error: %v", err)
		app.Close()
		os.Exit(1)
	}
}
