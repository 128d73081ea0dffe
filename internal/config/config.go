package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment after an
// optional .env load. An empty DatabaseURL selects the JSON file store.
type Config struct {
	DatabaseURL   string
	OpenAIAPIKey  string
	DataDir       string
	ModelPath     string
	TrackingDays  int
	CycleInterval int // minutes between scheduler cycles
}

// Load reads configuration, layering .env under the real environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		DataDir:       envOr("COO_DATA_DIR", "data"),
		ModelPath:     envOr("COO_MODEL_PATH", "data/policy.json"),
		TrackingDays:  envInt("COO_TRACKING_DAYS", 30),
		CycleInterval: envInt("COO_CYCLE_MINUTES", 60),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
