package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Neo4j     Neo4jConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	Retrieval RetrievalConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        int
	WriteTimeout       int
	BodyLimit          int
	RateLimitPerMinute int
	MaxQueryLength     int
	AllowedOrigins     string
	Development        bool
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type MilvusConfig struct {
	Address        string
	APIKey         string
	CollectionName string
	VectorDim      int
	NList          int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	QueryTTLSec     int
	EmbeddingTTLSec int
}

type OpenAIConfig struct {
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int
	BatchSize      int
	BatchDelayMs   int
	TimeoutSec     int
}

// RetrievalConfig carries the tunables of the hybrid query path. The
// semantic/graph weights must sum to 1 for scores to stay in [0,1].
type RetrievalConfig struct {
	TopK           int
	MaxHops        int
	SemanticWeight float64
	GraphWeight    float64
	MaxInsights    int
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
	viper.AddConfigPath("/etc/graphrag")

	viper.SetEnvPrefix("GRAPHRAG")
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

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.rateLimitPerMinute", 120)
	viper.SetDefault("server.maxQueryLength", 5000)
	viper.SetDefault("server.allowedOrigins", "*")
	viper.SetDefault("server.development", false)

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("milvus.address", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "account_documents")
	viper.SetDefault("milvus.vectorDim", 1536)
	viper.SetDefault("milvus.nlist", 128)

	viper.SetDefault("sqlite.path", "./data/graphrag.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.queryTTLSec", 300)
	viper.SetDefault("redis.embeddingTTLSec", 86400)

	viper.SetDefault("openai.embeddingModel", "text-embedding-ada-002")
	viper.SetDefault("openai.embeddingDim", 1536)
	viper.SetDefault("openai.batchSize", 100)
	viper.SetDefault("openai.batchDelayMs", 100)
	viper.SetDefault("openai.timeoutSec", 30)

	viper.SetDefault("retrieval.topK", 10)
	viper.SetDefault("retrieval.maxHops", 2)
	viper.SetDefault("retrieval.semanticWeight", 0.7)
	viper.SetDefault("retrieval.graphWeight", 0.3)
	viper.SetDefault("retrieval.maxInsights", 20)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
