package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/log"
	"github.com/voicebridge/voicebridge/pkg/dispatch"
	"github.com/voicebridge/voicebridge/pkg/room"
	"github.com/voicebridge/voicebridge/pkg/session"
	"github.com/voicebridge/voicebridge/pkg/speech"
	"github.com/voicebridge/voicebridge/pkg/vad"
	"github.com/voicebridge/voicebridge/pkg/worker"
)

const defaultDispatchURL = "ws://localhost:8080/ws/worker"

func newWorkerCmd() *cobra.Command {
	var (
		dispatchURL  string
		workerName   string
		maxSessions  int
		speechURL    string
		speechVoice  string
		instructions string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve realtime voice sessions dispatched from the hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if speechURL == "" {
				return fmt.Errorf("a speech service URL is required (--speech-url or %s)", config.EnvSpeechURL)
			}

			client, err := newGraphClient()
			if err != nil {
				return err
			}
			defer client.Close()

			// Load the VAD model once; every session shares it.
			model := vad.NewModel(log.Component("vad"))
			if err := model.Load(vad.DefaultModelConfig()); err != nil {
				return err
			}

			speechKey := os.Getenv(config.EnvSpeechKey)

			factory := func(job dispatch.Job) (*session.Session, error) {
				r, err := room.NewWebRTCRoom(job.RoomURL, job.RoomName, job.Token,
					room.WithLogger(log.Component("room", "job", job.ID)),
				)
				if err != nil {
					return nil, err
				}

				sttOpts := []speech.Option{
					speech.WithLogger(log.Component("stt", "job", job.ID)),
				}
				ttsOpts := []speech.Option{
					speech.WithLogger(log.Component("tts", "job", job.ID)),
				}
				if speechKey != "" {
					sttOpts = append(sttOpts, speech.WithAPIKey(speechKey))
					ttsOpts = append(ttsOpts, speech.WithAPIKey(speechKey))
				}
				if speechVoice != "" {
					ttsOpts = append(ttsOpts, speech.WithVoice(speechVoice))
				}

				stt, err := speech.NewTranscriber(speechURL, sttOpts...)
				if err != nil {
					return nil, err
				}
				tts, err := speech.NewSynthesizer(speechURL, r, ttsOpts...)
				if err != nil {
					return nil, err
				}

				opts := []session.Option{
					session.WithLogger(log.Component("session", "job", job.ID)),
				}
				if instructions != "" {
					opts = append(opts, session.WithInstructions(instructions))
				}

				return session.New(session.Deps{
					Room:        r,
					Invoker:     client,
					Model:       model,
					Transcriber: stt,
					Synthesizer: tts,
				}, opts...)
			}

			w, err := worker.New(dispatchURL, factory,
				worker.WithName(workerName),
				worker.WithMaxSessions(maxSessions),
				worker.WithLogger(log.Component("worker")),
			)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dispatchURL, "dispatch-url", config.DispatchURL(defaultDispatchURL), "dispatch server websocket URL")
	cmd.Flags().StringVar(&workerName, "name", "", "worker name reported to the dispatch server")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", worker.DefaultMaxSessions, "maximum concurrent sessions")
	cmd.Flags().StringVar(&speechURL, "speech-url", config.SpeechURL(""), "base URL of the speech service")
	cmd.Flags().StringVar(&speechVoice, "voice", "", "synthesis voice name")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions for the assistant")
	return cmd
}
