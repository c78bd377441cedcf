// Package console runs the dialogue loop in a terminal: type an utterance,
// see reply fragments printed as they stream in. It exercises the bridge
// and remote client end to end without audio hardware.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/voicebridge/voicebridge/pkg/bridge"
	"github.com/voicebridge/voicebridge/pkg/voice"
)

// Console is an interactive text front end for a language model.
type Console struct {
	model    voice.LanguageModel
	in       io.Reader
	out      io.Writer
	greeting string
	logger   *slog.Logger
}

// Option modifies the console.
type Option func(*Console)

// WithInput sets the input reader. Defaults to stdin.
func WithInput(r io.Reader) Option {
	return func(c *Console) {
		c.in = r
	}
}

// WithOutput sets the output writer. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Console) {
		c.out = w
	}
}

// WithGreeting prints a greeting before the first prompt.
func WithGreeting(text string) Option {
	return func(c *Console) {
		c.greeting = text
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// New creates a console around a language model.
func New(model voice.LanguageModel, opts ...Option) (*Console, error) {
	if model == nil {
		return nil, errors.New("console: model is required")
	}
	c := &Console{
		model:  model,
		in:     os.Stdin,
		out:    os.Stdout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run reads utterances until EOF, an exit command, or a fatal model error.
func (c *Console) Run(ctx context.Context) error {
	if c.greeting != "" {
		fmt.Fprintf(c.out, "agent> %s\n", c.greeting)
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}
		if utterance == "exit" || utterance == "quit" {
			return nil
		}

		if err := c.takeTurn(ctx, utterance); err != nil {
			if errors.Is(err, bridge.ErrFatal) {
				fmt.Fprintln(c.out, "agent> (connection to the assistant was lost)")
				return err
			}
			return err
		}
	}
}

// takeTurn sends one utterance and prints fragments as they arrive.
func (c *Console) takeTurn(ctx context.Context, utterance string) error {
	stream, err := c.model.Reply(ctx, &voice.Turn{Utterance: utterance})
	if err != nil {
		if errors.Is(err, voice.ErrInterrupted) {
			return nil
		}
		return err
	}
	defer stream.Close()

	fmt.Fprint(c.out, "agent> ")
	for {
		frag, err := stream.Recv()
		if err != nil {
			fmt.Fprintln(c.out)
			if errors.Is(err, voice.ErrInterrupted) {
				return nil
			}
			return err
		}
		if frag.Text != "" {
			fmt.Fprint(c.out, frag.Text)
		}
		if frag.Done {
			fmt.Fprintln(c.out)
			return nil
		}
	}
}
