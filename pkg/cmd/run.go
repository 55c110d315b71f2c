package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run starts modules in order and blocks until all of them have stopped.
// SIGINT/SIGTERM, or any module failing, stops the rest.
func Run(logger *zap.Logger, modules []Module) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	logger.Info("starting...", zap.Int("modules", len(modules)))
	for _, m := range modules {
		if err := m.Start(ctx, g); err != nil {
			stop()
			g.Wait()
			return fmt.Errorf("error while starting %T: %w", m, err)
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("exiting...")
		return nil
	})

	return g.Wait()
}
