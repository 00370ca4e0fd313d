// Package config reads service configuration from the environment,
// loading .env and .env.local first so local overrides win.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// MySQL
	MySQLURL      string
	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	// Redis
	RedisAddr string

	// Server
	Port string

	// OpenAI vector store
	OpenAIAPIKey  string
	VectorStoreID string
	StoreName     string

	// Corpus sync
	DataDir      string
	CorpusDir    string
	SyncSchedule string
}

// Load reads configuration from .env files and the environment.
func Load() (*Config, error) {
	// Missing .env files are fine; the environment may carry everything.
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	cfg := &Config{
		MySQLURL:      os.Getenv("MYSQL_URL"),
		MySQLHost:     getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:     getEnv("MYSQL_PORT", "3306"),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase: getEnv("MYSQL_DATABASE", "youth-chat"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Port:          getEnv("PORT", "8080"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		VectorStoreID: os.Getenv("RAG_VECTOR_STORE_ID"),
		StoreName:     getEnv("RAG_STORE_NAME", "YouthActivitiesKB"),
		DataDir:       getEnv("RAG_DATA_DIR", "rag_data"),
		CorpusDir:     getEnv("RAG_CORPUS_DIR", "rag_corpus"),
		SyncSchedule:  getEnv("CORPUS_SYNC_SCHEDULE", ""),
	}

	return cfg, nil
}

// DSN builds the MySQL data source name. MYSQL_URL wins when set;
// parseTime is required so DATETIME columns scan into time.Time.
func (c *Config) DSN() string {
	if c.MySQLURL != "" {
		return c.MySQLURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=Asia%%2FTaipei",
		c.MySQLUser, c.MySQLPassword, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// WriteEnvVar persists key=value into the env file, replacing an
// existing (possibly commented-out) assignment in place. Used by the
// rebuild path to record the freshly created vector store id — and only
// after the rebuild fully succeeded.
func WriteEnvVar(envPath, key, value string) error {
	line := key + "=" + value

	data, err := os.ReadFile(envPath)
	if os.IsNotExist(err) {
		return os.WriteFile(envPath, []byte(line+"\n"), 0o644)
	}
	if err != nil {
		return fmt.Errorf("read env file %s: %w", envPath, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	updated := false
	for i, existing := range lines {
		if strings.HasPrefix(existing, key+"=") || strings.HasPrefix(existing, "#"+key+"=") {
			lines[i] = line
			updated = true
			break
		}
	}
	if !updated {
		lines = append(lines, line)
	}

	return os.WriteFile(envPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
