package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; all existing files are loaded.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads .env files from the working directory. godotenv never
// overrides variables already present in the process environment.
func loadEnvFile() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load environment file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}
