package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sosodev/duration"
)

// LoadEnvFile loads a .env file from the executable's directory, falling back
// to the current working directory. Variables already set in the environment
// win. It reports the file it loaded, or "" when none was found.
func LoadEnvFile() string {
	var candidates []string
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	} else {
		slog.Warn("Failed to get executable path", "error", err)
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	for _, envFile := range candidates {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			slog.Error("Failed to load .env file", "error", err, "path", envFile)
			return ""
		}
		slog.Info("Configuration loaded from .env file", "path", envFile)
		return envFile
	}
	slog.Debug("No .env file found")
	return ""
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use ISO 8601 (PT5M) or Go format (5m)", s)
	}
	return d, nil
}

// parsePeriodSeconds parses s as a positive whole number of seconds.
func parsePeriodSeconds(s string) (uint, error) {
	d, err := parseDurationISO8601(s)
	if err != nil {
		return 0, err
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("invalid period %q: must be a positive whole number of seconds", s)
	}
	return uint(d / time.Second), nil
}
