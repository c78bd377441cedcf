// Package config provides environment configuration helpers for
// voicebridge commands.
package config

import "os"

// Environment variable names recognized by the commands.
const (
	EnvGraphURL    = "GRAPH_URL"
	EnvGraphName   = "GRAPH_NAME"
	EnvGraphAPIKey = "GRAPH_API_KEY"
	EnvDispatchURL = "DISPATCH_URL"
	EnvSpeechURL   = "SPEECH_URL"
	EnvSpeechKey   = "SPEECH_API_KEY"
)

// Env returns the value of the named environment variable,
// or fallback if it is not set.
func Env(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// GraphURL returns the remote graph base URL.
func GraphURL(fallback string) string {
	return Env(EnvGraphURL, fallback)
}

// GraphName returns the graph name to invoke.
func GraphName(fallback string) string {
	return Env(EnvGraphName, fallback)
}

// DispatchURL returns the dispatch server websocket URL.
func DispatchURL(fallback string) string {
	return Env(EnvDispatchURL, fallback)
}

// SpeechURL returns the speech service base URL.
func SpeechURL(fallback string) string {
	return Env(EnvSpeechURL, fallback)
}
