// Package config loads repoatlas settings from defaults, an optional
// repoatlas.yaml, a .env file and the environment. Commands receive a built
// *Config; nothing below cmd reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	ReposDir string `mapstructure:"repos_dir"`

	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vertex    VertexConfig    `mapstructure:"vertex"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Query     QueryConfig     `mapstructure:"query"`
	Log       LogConfig       `mapstructure:"log"`
}

// MetadataConfig selects where Repository Metadata documents live.
type MetadataConfig struct {
	Backend  string `mapstructure:"backend"` // "file" or "mongo"
	Dir      string `mapstructure:"dir"`
	MongoURI string `mapstructure:"mongo_uri"`
	MongoDB  string `mapstructure:"mongo_db"`
}

// Neo4jConfig holds graph store connection settings.
type Neo4jConfig struct {
	URI            string        `mapstructure:"uri"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// VectorConfig holds vector store settings.
type VectorConfig struct {
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"` // "ollama" or "vertex"
	Model     string `mapstructure:"model"`
	OllamaURL string `mapstructure:"ollama_url"`
	BatchSize int    `mapstructure:"batch_size"`
}

// LLMConfig selects the text-generation provider.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"` // "ollama" or "vertex"
	Model     string `mapstructure:"model"`
	OllamaURL string `mapstructure:"ollama_url"`
}

// VertexConfig holds Google Cloud settings shared by the Vertex providers.
type VertexConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// ChunkConfig holds chunking thresholds in characters.
type ChunkConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// ScanConfig controls repository scanning.
type ScanConfig struct {
	RespectGitignore bool          `mapstructure:"respect_gitignore"`
	MaxFileSize      int64         `mapstructure:"max_file_size"`
	GitTimeout       time.Duration `mapstructure:"git_timeout"`
	CloneTimeout     time.Duration `mapstructure:"clone_timeout"`
}

// QueryConfig bounds structural query output.
type QueryConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envAliases binds keys to the unprefixed variable names used by existing
// deployments in addition to the REPOATLAS_ names.
var envAliases = map[string][]string{
	"neo4j.uri":            {"NEO4J_URI"},
	"neo4j.user":           {"NEO4J_USER", "NEO4J_USERNAME"},
	"neo4j.password":       {"NEO4J_PASSWORD"},
	"neo4j.database":       {"NEO4J_DATABASE"},
	"metadata.mongo_uri":   {"MONGODB_URI"},
	"vertex.project":       {"GCP_PROJECT_ID"},
	"vertex.location":      {"GCP_LOCATION"},
	"embedding.ollama_url": {"OLLAMA_HOST"},
	"llm.ollama_url":       {"OLLAMA_HOST"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("repos_dir", "")

	v.SetDefault("metadata.backend", "file")
	v.SetDefault("metadata.dir", "")
	v.SetDefault("metadata.mongo_uri", "")
	v.SetDefault("metadata.mongo_db", "repoatlas")

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("neo4j.max_attempts", 5)
	v.SetDefault("neo4j.initial_backoff", time.Second)

	v.SetDefault("vector.path", "")
	v.SetDefault("vector.collection", "code_chunks")

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.ollama_url", "http://localhost:11434")
	v.SetDefault("embedding.batch_size", 50)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "qwen3:8b")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")

	v.SetDefault("vertex.project", "")
	v.SetDefault("vertex.location", "us-central1")

	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 200)

	v.SetDefault("scan.respect_gitignore", false)
	v.SetDefault("scan.max_file_size", 2<<20)
	v.SetDefault("scan.git_timeout", 30*time.Second)
	v.SetDefault("scan.clone_timeout", 10*time.Minute)

	v.SetDefault("query.max_results", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults and environment bindings but no
// config file. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPOATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		args := append([]string{key, "REPOATLAS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		_ = v.BindEnv(args...)
	}
	return v
}

// Load reads .env (if present), then the config file, and unmarshals the
// result. An empty configFile searches the working directory for
// repoatlas.yaml; a missing file is not an error in that case.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// .env is optional; a missing file is fine.
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("repoatlas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.resolvePaths()
	return &cfg
}

// resolvePaths fills directory settings that default relative to DataDir.
func (c *Config) resolvePaths() {
	if c.ReposDir == "" {
		c.ReposDir = filepath.Join(c.DataDir, "repos")
	}
	if c.Metadata.Dir == "" {
		c.Metadata.Dir = filepath.Join(c.DataDir, "metadata")
	}
	if c.Vector.Path == "" {
		c.Vector.Path = filepath.Join(c.DataDir, "vectors.db")
	}
}

// Validate checks the configuration for values the components cannot work
// with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return &ConfigError{Field: "data_dir", Message: "must not be empty"}
	}
	switch c.Metadata.Backend {
	case "file":
	case "mongo":
		if c.Metadata.MongoURI == "" {
			return &ConfigError{Field: "metadata.mongo_uri", Message: "required when metadata.backend is mongo"}
		}
	default:
		return &ConfigError{Field: "metadata.backend", Message: fmt.Sprintf("unknown backend %q", c.Metadata.Backend)}
	}
	if c.Neo4j.MaxAttempts < 1 {
		return &ConfigError{Field: "neo4j.max_attempts", Message: "must be at least 1"}
	}
	if err := validateProvider("embedding.provider", c.Embedding.Provider); err != nil {
		return err
	}
	if err := validateProvider("llm.provider", c.LLM.Provider); err != nil {
		return err
	}
	if (c.Embedding.Provider == "vertex" || c.LLM.Provider == "vertex") && c.Vertex.Project == "" {
		return &ConfigError{Field: "vertex.project", Message: "required for the vertex provider"}
	}
	if c.Embedding.BatchSize < 1 {
		return &ConfigError{Field: "embedding.batch_size", Message: "must be positive"}
	}
	if c.Chunk.Size <= 0 {
		return &ConfigError{Field: "chunk.size", Message: "must be positive"}
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return &ConfigError{Field: "chunk.overlap", Message: "must be in [0, chunk.size)"}
	}
	if c.Query.MaxResults < 1 {
		return &ConfigError{Field: "query.max_results", Message: "must be positive"}
	}
	return nil
}

func validateProvider(field, p string) error {
	if p != "ollama" && p != "vertex" {
		return &ConfigError{Field: field, Message: fmt.Sprintf("unknown provider %q", p)}
	}
	return nil
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
