package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini API credentials. GeminiAPIKey is the primary key; GeminiAPIKeys
	// is an optional comma-separated list of fallback keys used when the
	// primary gets rate limited.
	GeminiAPIKey    string
	GeminiAPIKeys   []string
	GenerationModel string
	EmbeddingsModel string
	APITier         string
	Temperature     float64
	MaxTokens       int

	// Vector index / knowledge base
	VectorIndexPath  string
	KnowledgeBaseDir string
	TopKRetrieval    int
	EmbedBatchSize   int

	// HTTP rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Redis (rate limiting + asynq broker)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// MongoDB (query/feedback history)
	MongoURI string
	DBName   string

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiAPIKeys:   splitKeys(getEnv("GEMINI_API_KEYS", "")),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		APITier:         getEnv("API_TIER", "free"),
		Temperature:     getEnvFloat64("TEMPERATURE", 0.7),
		MaxTokens:       getEnvInt("MAX_TOKENS", 2048),

		VectorIndexPath:  getEnv("VECTOR_INDEX_PATH", "knowledge_base/index/kb_index"),
		KnowledgeBaseDir: getEnv("KNOWLEDGE_BASE_DIR", "knowledge_base"),
		TopKRetrieval:    getEnvInt("TOP_K_RETRIEVAL", 5),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 32),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/exam_tutor"),
		DBName:   getEnv("DB_NAME", "exam_tutor"),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" && len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("GEMINI_API_KEY or GEMINI_API_KEYS is required - set it in .env file")
	}

	return cfg, nil
}

// APIKeys returns the ordered credential pool: the primary key first,
// followed by fallback keys, duplicates removed.
func (c *Config) APIKeys() []string {
	keys := make([]string, 0, len(c.GeminiAPIKeys)+1)
	seen := make(map[string]bool)
	if c.GeminiAPIKey != "" {
		keys = append(keys, c.GeminiAPIKey)
		seen[c.GeminiAPIKey] = true
	}
	for _, k := range c.GeminiAPIKeys {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	return keys
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
