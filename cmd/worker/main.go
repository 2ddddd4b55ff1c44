package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/processor"
	"github.com/pockethour/image-sentinel/internal/server/config"
)

func main() {

	cfg, err := config.LoadWorkerConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)
	srv := processor.NewServer(cfg.Address, processor.NewLocal(logger), logger)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("worker: %v", err)
	}

}
