package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the env file named by SWARM_ENV, or .env, and then its
// .secret sidecar. Variables already set in the process win. A missing .env
// or sidecar is fine; a missing file that SWARM_ENV names explicitly is not.
func Load() error {
	envFile, explicit := os.LookupEnv("SWARM_ENV")
	if !explicit || envFile == "" {
		envFile, explicit = ".env", false
	}

	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := godotenv.Load(envFile + ".secret"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s.secret: %w", envFile, err)
	}
	return nil
}

func intEnv(name string, def int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func durationEnv(name string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func stringEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func LogLevel() string {
	return stringEnv("LOG_LEVEL", "info")
}

// Coordinator server

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	return stringEnv("MIGRATIONS_PATH", "migrations")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return intEnv("RATE_LIMIT_BURST", 20)
}

// StageDuration is how long the coordinator keeps the swarm in one stage.
func StageDuration() time.Duration {
	return durationEnv("STAGE_DURATION", 2*time.Minute)
}

// AdminAPIKey guards /v1/admin routes. Empty disables them.
func AdminAPIKey() string {
	return os.Getenv("ADMIN_API_KEY")
}

// Node

// NodeKey overrides the key derived from the node identity.
func NodeKey() string {
	return os.Getenv("NODE_KEY")
}

func IdentityPath() string {
	if p := os.Getenv("IDENTITY_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".swarm", "node.key")
	}
	return filepath.Join(home, ".swarm", "node.key")
}

// StoreBackend is "memory" or "postgres".
func StoreBackend() string {
	return stringEnv("STORE_BACKEND", "memory")
}

func SearchWidth() int {
	return intEnv("SEARCH_WIDTH", 100)
}

// OutputTTL is how long published stage outputs stay readable.
func OutputTTL() time.Duration {
	return durationEnv("OUTPUT_TTL", 6*time.Hour)
}

func CheckInterval() time.Duration {
	return durationEnv("CHECK_INTERVAL", 5*time.Second)
}

func WaitTimeout() time.Duration {
	return durationEnv("WAIT_TIMEOUT", 10*time.Second)
}

func DHTSampleLimit() int {
	return intEnv("DHT_SAMPLE_LIMIT", 200)
}

func RoundWinnerLimit() int {
	return intEnv("ROUND_WINNER_LIMIT", 10)
}

func MaxRounds() int {
	return intEnv("MAX_ROUNDS", 100)
}

func NumGenerations() int {
	return intEnv("NUM_GENERATIONS", 2)
}

func CoordinatorURL() string {
	return os.Getenv("COORDINATOR_URL")
}

func CoordinatorAPIKey() string {
	return os.Getenv("COORDINATOR_API_KEY")
}

func MetricsAddr() string {
	return stringEnv("METRICS_ADDR", ":9100")
}

// DatasetPath points at a JSONL question file. Empty uses the built-in set.
func DatasetPath() string {
	return os.Getenv("DATASET_PATH")
}

// LLM

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured completion provider.
// Defaults to "mock" if not set.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	return stringEnv("LLM_PROVIDER", "mock")
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	return ProviderAPIKey(LLMProvider())
}

// ProviderAPIKey returns the API key for the named LLM provider.
func ProviderAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}
