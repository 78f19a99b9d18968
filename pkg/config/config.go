package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when the service cannot start because a
// required external credential is absent. Startup treats it as fatal.
var ErrMissingCredentials = errors.New("missing required credentials")

type Config struct {
	Server  ServerConfig
	Corpus  CorpusConfig
	LLM     LLMConfig
	Index   IndexConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Rules   RulesConfig
	Auth    AuthConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
}

type CorpusConfig struct {
	DocsDir       string
	ChunkMaxWords int
	ChunkMinWords int
	TopK          int
	FastPath      bool
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type IndexConfig struct {
	Backend        string
	Endpoint       string
	CollectionName string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type RulesConfig struct {
	EmergencyMinPolicyMonths int
}

type AuthConfig struct {
	BearerToken string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/claims-agent")

	viper.SetEnvPrefix("CLAIMS_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the service cannot serve with. It runs
// before any client is constructed so a bad deployment never starts
// accepting traffic.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.apiKey is required", ErrMissingCredentials)
	}
	if c.Index.Backend != "memory" && c.Index.Backend != "milvus" {
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	if c.Index.Backend == "milvus" && c.Index.Endpoint == "" {
		return fmt.Errorf("%w: index.endpoint is required for the milvus backend", ErrMissingCredentials)
	}
	if c.Corpus.ChunkMinWords >= c.Corpus.ChunkMaxWords {
		return fmt.Errorf("corpus.chunkMinWords (%d) must be below corpus.chunkMaxWords (%d)",
			c.Corpus.ChunkMinWords, c.Corpus.ChunkMaxWords)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.rateLimit", 60)

	viper.SetDefault("corpus.docsDir", "./docs")
	viper.SetDefault("corpus.chunkMaxWords", 500)
	viper.SetDefault("corpus.chunkMinWords", 40)
	viper.SetDefault("corpus.topK", 5)
	viper.SetDefault("corpus.fastPath", false)

	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.embeddingDim", 1536)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("index.backend", "memory")
	viper.SetDefault("index.collectionName", "policy_chunks")

	viper.SetDefault("sqlite.path", "./data/claims.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("rules.emergencyMinPolicyMonths", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
