package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rdaclient/internal/config"
)

func main() {
	cfg := config.DefaultConfig()
	if len(os.Args) > 1 {
		loaded, err := config.LoadConfig(os.Args[1])
		if err != nil {
			log.Fatalf("rdaclient: load config: %v", err)
		}
		cfg = loaded
	}

	app := NewApp(cfg)

	ctx, cancel := context.WithCancel(context.Background())

	if err := app.Start(ctx); err != nil {
		cancel()
		log.Fatalf("rdaclient: start: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	doneCh := make(chan struct{})
	go func() {
		app.Wait(ctx)
		close(doneCh)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("rdaclient: received signal %s, shutting down", sig)
		cancel()
		<-doneCh
	case <-doneCh:
	}
}
