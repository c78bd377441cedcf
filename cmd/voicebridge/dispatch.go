package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/internal/log"
	"github.com/voicebridge/voicebridge/pkg/dispatch"
)

func newDispatchCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run the dispatch server that assigns rooms to workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := dispatch.NewServer(log.Component("dispatch"))

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(addr)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutting down dispatch server")
				return srv.Shutdown()
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
