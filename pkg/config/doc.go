// Package config loads the settings of the simple-2fa binaries.
//
// Settings are read from the environment with cleanenv. A .env file next to
// the executable, or in the working directory, is loaded first and never
// overrides variables that are already set.
//
//	config.LoadEnvFile()
//	cfg, err := config.LoadServerConfig()
//	if err != nil {
//		slog.Error("Failed to load config", "err", err)
//		os.Exit(1)
//	}
//
// Periods such as TWOFA_CODE_PERIOD accept ISO 8601 durations ("PT5M") as well
// as Go durations ("5m").
package config
