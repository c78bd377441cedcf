package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/internal/log"
	"github.com/voicebridge/voicebridge/pkg/bridge"
	"github.com/voicebridge/voicebridge/pkg/console"
	"github.com/voicebridge/voicebridge/pkg/thread"
)

func newConsoleCmd() *cobra.Command {
	var (
		threadID string
		greeting string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the remote graph from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := newGraphClient()
			if err != nil {
				return err
			}
			defer client.Close()

			identity := thread.None()
			if threadID != "" {
				identity = thread.FromID(threadID)
			}

			b, err := bridge.New(client, identity,
				bridge.WithLogger(log.Component("bridge")),
			)
			if err != nil {
				return err
			}

			opts := []console.Option{
				console.WithLogger(log.Component("console")),
			}
			if greeting != "" {
				opts = append(opts, console.WithGreeting(greeting))
			}

			c, err := console.New(b, opts...)
			if err != nil {
				return err
			}
			return c.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "resume an existing conversation thread")
	cmd.Flags().StringVar(&greeting, "greeting", "", "greeting printed before the first prompt")
	return cmd
}
