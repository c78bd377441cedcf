// Command voicebridge runs the voice assistant in one of three modes:
// a terminal console for local testing, a worker that serves realtime
// audio sessions, and a dispatch server that hands rooms to workers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/log"
	"github.com/voicebridge/voicebridge/pkg/graph"
)

var (
	logLevel    string
	graphURL    string
	graphName   string
	graphAPIKey string
)

func main() {
	root := &cobra.Command{
		Use:   "voicebridge",
		Short: "Voice assistant bridge to a remote dialogue graph",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init(logLevel)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&graphURL, "graph-url", config.GraphURL(graph.DefaultBaseURL), "base URL of the remote graph server")
	root.PersistentFlags().StringVar(&graphName, "graph-name", config.GraphName(graph.DefaultGraph), "name of the graph to invoke")
	root.PersistentFlags().StringVar(&graphAPIKey, "graph-api-key", config.Env(config.EnvGraphAPIKey, ""), "bearer token for the graph server")

	root.AddCommand(newConsoleCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newDispatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newGraphClient() (*graph.Client, error) {
	opts := []graph.Option{
		graph.WithLogger(log.Component("graph")),
	}
	if graphAPIKey != "" {
		opts = append(opts, graph.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: graphAPIKey}),
		))
	}
	return graph.NewClient(graph.NewHandle(graphName, graphURL), opts...)
}
