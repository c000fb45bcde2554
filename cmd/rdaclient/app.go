package main

import (
	"context"
	"fmt"
	"time"

	"rdaclient/internal/client"
	"rdaclient/internal/config"
	"rdaclient/internal/diag"
)

// App composes the configured components: the controller, and, when
// enabled, the diagnostics broadcaster. It mirrors the teacher's App
// struct: component composition plus a Start/Stop/Wait lifecycle built
// on context.Context.
type App struct {
	cfg *config.Config

	logger *diag.Logger
	client *client.Client

	broadcastCancel context.CancelFunc
	broadcastDone   chan error
}

// NewApp wires the configured components together.
func NewApp(cfg *config.Config) *App {
	logger := diag.NewLogger("rdaclient: ", cfg.Diagnostics.EnableDebug)

	c := client.New(
		client.WithLogger(logger),
		client.WithConfig(cfg),
	)

	return &App{cfg: cfg, logger: logger, client: c}
}

// Start connects, performs the handshake, and starts diagnostics if
// enabled.
func (a *App) Start(ctx context.Context) error {
	if err := a.client.Connect(a.cfg.Network.Address); err != nil {
		return fmt.Errorf("app: connect: %w", err)
	}
	if err := a.client.StartStreaming(ctx, a.cfg.Network.HandshakeTimeout); err != nil {
		return fmt.Errorf("app: start streaming: %w", err)
	}

	if a.cfg.Diagnostics.EnableBroadcast {
		bcastCtx, cancel := context.WithCancel(ctx)
		a.broadcastCancel = cancel
		a.broadcastDone = make(chan error, 1)

		bcast := diag.NewBroadcaster(a.client.RingStatus(), a.logger, time.Second)
		go func() { a.broadcastDone <- bcast.Run(bcastCtx, a.cfg.Diagnostics.ListenAddress) }()
	}

	return nil
}

// Wait blocks until ctx is done, then stops streaming and disconnects.
func (a *App) Wait(ctx context.Context) error {
	<-ctx.Done()
	return a.Stop()
}

// Stop halts streaming, diagnostics and the connection.
func (a *App) Stop() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if a.client.Alive() {
		err = a.client.StopStreaming(stopCtx, a.cfg.Diagnostics.SaveTimelog)
	}
	if a.broadcastCancel != nil {
		a.broadcastCancel()
		<-a.broadcastDone
	}
	if dErr := a.client.Disconnect(); dErr != nil && err == nil {
		err = dErr
	}
	return err
}
