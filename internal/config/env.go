package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are tried in order. Variables already set in the process
// environment win over file values.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first env file that exists. A missing file is not an error.
func loadEnvFiles() {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err == nil {
			slog.Debug("Loaded environment variables", "path", path)
			return
		}
	}
}
