package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Client holds the client-side configuration. POLL_SECRET_KEY is a
// base64-encoded 32-byte key for the credential record; when unset, a key
// is generated on first run and kept in the data directory.
type Client struct {
	BaseURL     string        `env:"POLL_API_URL" envDefault:"http://localhost:8080"`
	DataDir     string        `env:"POLL_DATA_DIR"`
	SecretKey   string        `env:"POLL_SECRET_KEY"`
	HTTPTimeout time.Duration `env:"POLL_HTTP_TIMEOUT" envDefault:"15s"`
	// DebugMetrics dumps the request counters to stderr after a command.
	DebugMetrics bool `env:"POLL_DEBUG_METRICS"`
}

// Stub holds the development stub server configuration.
type Stub struct {
	Port        string `env:"STUB_PORT" envDefault:"8080"`
	JWTSecret   string `env:"STUB_JWT_SECRET" envDefault:"dev-secret-change-me"`
	VotesPerMin int    `env:"STUB_VOTES_PER_MIN" envDefault:"0"`
}

func LoadClient() (Client, error) {
	_ = godotenv.Load()

	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Client{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".pollcli")
	}

	return cfg, nil
}

func LoadStub() (Stub, error) {
	_ = godotenv.Load()

	var cfg Stub
	if err := env.Parse(&cfg); err != nil {
		return Stub{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
