package config

// Defaults returns the configuration used when no file exists yet.
// Credentials are intentionally blank.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: 30,
		},
		Discord: DiscordConfig{
			MaxFiles:         10,
			MaxContentLength: 1900,
		},
		Relay: RelayConfig{
			DebounceMs: 1500,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  "~/.annsync/relay.db",
		},
		Health: HealthConfig{
			Enabled: true,
			Addr:    ":8080",
		},
	}
}
