package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the document verification service.
// Values come from the environment; a .env file is honored in development.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Scylla        ScyllaConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Codec         CodecConfig
	OCR           OCRConfig
	Verify        VerifyConfig
	Bucketing     BucketingConfig
	Hashing       HashingConfig
	Store         StoreConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// ScyllaConfig configures the remote document store. An empty node list means
// no remote backend is configured and the file-backed local store is used.
type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
	Table    string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers         []string
	SubmissionTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
	Table    string
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

// KMSConfig enables the optional envelope-encryption mode of the submission
// codec. Disabled by default: the stock behavior is a single static
// passphrase-derived key.
type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type CodecConfig struct {
	Passphrase string
}

type OCRConfig struct {
	BaseURL string
	Timeout time.Duration
	Enhance bool
}

type VerifyConfig struct {
	// FreshnessWindow bounds how old a payload's verifiedAt may be.
	FreshnessWindow time.Duration
	// PayloadBaseURL is embedded in generated QR verification URLs.
	PayloadBaseURL string
}

type BucketingConfig struct {
	DocBuckets   int
	EventBuckets int
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type StoreConfig struct {
	// Namespace prefixes every collection key/file so multiple deployments
	// can share a backend.
	Namespace string
	// LocalDir is where the fallback store keeps its collection files.
	LocalDir string
}

var (
	cfg  *Config
	once sync.Once
)

// LoadConfig reads the environment (and .env in development) exactly once.
func LoadConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		cfg = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
				AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", "localhost"),
				CertFile:     getEnv("SERVER_CERT_FILE", ""),
				KeyFile:      getEnv("SERVER_KEY_FILE", ""),
				AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "./certs"),
				Email:        getEnv("SERVER_ACME_EMAIL", ""),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "console"),
			},
			Scylla: ScyllaConfig{
				Nodes:    getEnvSlice("SCYLLA_NODES", nil),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "docverify"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
				Table:    getEnv("SCYLLA_TABLE", "documents"),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", ""),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
			},
			Kafka: KafkaConfig{
				Brokers:         getEnvSlice("KAFKA_BROKERS", nil),
				SubmissionTopic: getEnv("KAFKA_SUBMISSION_TOPIC", "docverify.submissions"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", ""),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "docverify"),
				Table:    getEnv("CLICKHOUSE_SCAN_TABLE", "scan_audit"),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:      getEnv("ELASTICSEARCH_URL", ""),
				Username: getEnv("ELASTICSEARCH_USERNAME", ""),
				Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
				Index:    getEnv("ELASTICSEARCH_SUBMISSION_INDEX", "docverify-submissions"),
			},
			KMS: KMSConfig{
				Enabled: getEnvBool("KMS_ENABLED", false),
				KeyID:   getEnv("KMS_KEY_ID", ""),
				Region:  getEnv("KMS_REGION", "ap-south-1"),
			},
			Codec: CodecConfig{
				Passphrase: getEnv("CODEC_PASSPHRASE", "docverify-static-key"),
			},
			OCR: OCRConfig{
				BaseURL: getEnv("OCR_BASE_URL", "http://localhost:5000"),
				Timeout: getEnvDuration("OCR_TIMEOUT", 90*time.Second),
				Enhance: getEnvBool("OCR_ENHANCE", true),
			},
			Verify: VerifyConfig{
				FreshnessWindow: getEnvDuration("VERIFY_FRESHNESS_WINDOW", 24*time.Hour),
				PayloadBaseURL:  getEnv("VERIFY_PAYLOAD_BASE_URL", "https://localhost:8443/verify"),
			},
			Bucketing: BucketingConfig{
				DocBuckets:   getEnvInt("BUCKETING_DOC_BUCKETS", 16),
				EventBuckets: getEnvInt("BUCKETING_EVENT_BUCKETS", 64),
			},
			Hashing: HashingConfig{
				Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 65536),
				Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 3),
				Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 2),
			},
			Store: StoreConfig{
				Namespace: getEnv("STORE_NAMESPACE", "docverify"),
				LocalDir:  getEnv("STORE_LOCAL_DIR", "./data"),
			},
		}
	})

	return cfg
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if cfg == nil {
		return LoadConfig()
	}
	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// HasRemoteStore reports whether a remote document backend is configured.
func (c *Config) HasRemoteStore() bool {
	return len(c.Scylla.Nodes) > 0
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
