package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; the rest are
// listed in RestartRequired so the caller can warn about them.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ChatChanged is true if any field of the chat section changed.
	ChatChanged         bool
	VoicesChanged       bool
	HistoryLimitChanged bool

	// RestartRequired names changed settings that only take effect after a
	// restart, e.g. "server.listen_addr".
	RestartRequired []string
}

// Changed reports whether the diff contains anything at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ChatChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Chat
	if !maps.Equal(old.Chat.Voices, new.Chat.Voices) || old.Chat.DefaultVoice != new.Chat.DefaultVoice {
		d.VoicesChanged = true
	}
	if old.Chat.HistoryLimit != new.Chat.HistoryLimit {
		d.HistoryLimitChanged = true
	}
	d.ChatChanged = d.VoicesChanged || d.HistoryLimitChanged ||
		old.Chat.Temperature != new.Chat.Temperature ||
		old.Chat.MaxTokens != new.Chat.MaxTokens ||
		old.Chat.ReplyTimeout != new.Chat.ReplyTimeout

	// Everything below is bound at startup.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.MetricsPath != new.Server.MetricsPath {
		d.RestartRequired = append(d.RestartRequired, "server.metrics_path")
	}
	if old.Server.ReadTimeout != new.Server.ReadTimeout || old.Server.WriteTimeout != new.Server.WriteTimeout {
		d.RestartRequired = append(d.RestartRequired, "server.timeouts")
	}
	if !providerEqual(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !providerEqual(old.Providers.TTS, new.Providers.TTS) {
		d.RestartRequired = append(d.RestartRequired, "providers.tts")
	}
	if old.Database != new.Database {
		d.RestartRequired = append(d.RestartRequired, "database")
	}

	return d
}

func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && reflect.DeepEqual(a.Options, b.Options)
}
