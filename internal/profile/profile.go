package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where notesrag stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIEmbeddingProvider  string // NOTESRAG_EMBEDDING_PROVIDER (default: ollama)
	AIEmbeddingModel     string // NOTESRAG_EMBEDDING_MODEL (default: nomic-embed-text)
	AIEmbeddingDimension int    // NOTESRAG_EMBEDDING_DIMENSIONS (default: 768)
	AILLMProvider        string // NOTESRAG_LLM_PROVIDER (default: ollama)
	AILLMModel           string // NOTESRAG_LLM_MODEL (default: phi3:mini)
	AIOllamaBaseURL      string // NOTESRAG_OLLAMA_BASE_URL (legacy: OLLAMA_HOST)
	AIOpenAIAPIKey       string // NOTESRAG_OPENAI_API_KEY
	AIOpenAIBaseURL      string // NOTESRAG_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIDeepSeekAPIKey     string // NOTESRAG_DEEPSEEK_API_KEY
	AIDeepSeekBaseURL    string // NOTESRAG_DEEPSEEK_BASE_URL (default: https://api.deepseek.com)
	AISiliconFlowAPIKey  string // NOTESRAG_SILICONFLOW_API_KEY
	AISiliconFlowBaseURL string // NOTESRAG_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)

	// Retrieval and memory
	VectorBackend            string // NOTESRAG_VECTOR_BACKEND (store or memory)
	TopK                     int    // NOTESRAG_TOP_K (default: 3)
	MemoryWindow             int    // NOTESRAG_MEMORY_WINDOW (default: 10)
	MemoryLogCap             int    // NOTESRAG_MEMORY_LOG_CAP (default: 100)
	MaxConcurrentGenerations int    // NOTESRAG_MAX_CONCURRENT_GENERATIONS (default: 3)

	// Optional Redis L2 for the query embedding cache
	RedisAddr     string // NOTESRAG_REDIS_ADDR (empty disables)
	RedisPassword string // NOTESRAG_REDIS_PASSWORD
	RedisDB       int    // NOTESRAG_REDIS_DB
}

const (
	VectorBackendStore  = "store"
	VectorBackendMemory = "memory"
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsRedisEnabled reports whether a Redis L2 cache is configured.
func (p *Profile) IsRedisEnabled() bool {
	return p.RedisAddr != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer env value", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

// FromEnv loads AI, retrieval and memory configuration from environment variables.
func (p *Profile) FromEnv() {
	// Helper to get env value with legacy fallback and default value
	getEnvWithDefault := func(newKey, legacyKey, defaultValue string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		if legacyKey != "" {
			if val := os.Getenv(legacyKey); val != "" {
				return val
			}
		}
		return defaultValue
	}

	p.AIEmbeddingProvider = getEnvOrDefault("NOTESRAG_EMBEDDING_PROVIDER", "ollama")
	p.AIEmbeddingModel = getEnvOrDefault("NOTESRAG_EMBEDDING_MODEL", "nomic-embed-text")
	p.AIEmbeddingDimension = getIntEnvOrDefault("NOTESRAG_EMBEDDING_DIMENSIONS", 768)
	p.AILLMProvider = getEnvOrDefault("NOTESRAG_LLM_PROVIDER", "ollama")
	p.AILLMModel = getEnvOrDefault("NOTESRAG_LLM_MODEL", "phi3:mini")
	p.AIOllamaBaseURL = getEnvWithDefault("NOTESRAG_OLLAMA_BASE_URL", "OLLAMA_HOST", "http://localhost:11434")
	p.AIOpenAIAPIKey = os.Getenv("NOTESRAG_OPENAI_API_KEY")
	p.AIOpenAIBaseURL = getEnvOrDefault("NOTESRAG_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.AIDeepSeekAPIKey = os.Getenv("NOTESRAG_DEEPSEEK_API_KEY")
	p.AIDeepSeekBaseURL = getEnvOrDefault("NOTESRAG_DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	p.AISiliconFlowAPIKey = os.Getenv("NOTESRAG_SILICONFLOW_API_KEY")
	p.AISiliconFlowBaseURL = getEnvOrDefault("NOTESRAG_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")

	p.VectorBackend = getEnvOrDefault("NOTESRAG_VECTOR_BACKEND", VectorBackendStore)
	p.TopK = getIntEnvOrDefault("NOTESRAG_TOP_K", 3)
	p.MemoryWindow = getIntEnvOrDefault("NOTESRAG_MEMORY_WINDOW", 10)
	p.MemoryLogCap = getIntEnvOrDefault("NOTESRAG_MEMORY_LOG_CAP", 100)
	p.MaxConcurrentGenerations = getIntEnvOrDefault("NOTESRAG_MAX_CONCURRENT_GENERATIONS", 3)

	p.RedisAddr = os.Getenv("NOTESRAG_REDIS_ADDR")
	p.RedisPassword = os.Getenv("NOTESRAG_REDIS_PASSWORD")
	p.RedisDB = getIntEnvOrDefault("NOTESRAG_REDIS_DB", 0)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}
	if p.VectorBackend != VectorBackendStore && p.VectorBackend != VectorBackendMemory {
		return errors.Errorf("unsupported vector backend %q", p.VectorBackend)
	}
	if p.AIEmbeddingDimension <= 0 {
		return errors.Errorf("embedding dimension must be positive, got %d", p.AIEmbeddingDimension)
	}
	if p.TopK <= 0 {
		return errors.Errorf("top k must be positive, got %d", p.TopK)
	}
	if p.MemoryWindow <= 0 || p.MemoryLogCap <= 0 {
		return errors.Errorf("memory window and log cap must be positive, got %d and %d", p.MemoryWindow, p.MemoryLogCap)
	}
	if p.MaxConcurrentGenerations <= 0 {
		p.MaxConcurrentGenerations = 1
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "notesrag")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/notesrag"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("notesrag_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
