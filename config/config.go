package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppMode     string
	CORSOrigins string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTSecret        string
	JWTPublicKeyPath string
	JWTIssuer        string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisFanout   bool

	BlobDriver    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string
	S3PublicBase  string
	MinioEndpoint string
	MinioUseSSL   bool
	SignedURLTTL  time.Duration

	GroupChatsEnabled bool
	MessageRateLimit  int
	PresenceSweepSpec string
	PresenceMaxAge    time.Duration

	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint string
	ServiceName  string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppMode:     getEnv("APP_MODE", "debug"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "relay_chat"),
		DBPort:     getEnv("DB_PORT", "5432"),

		JWTSecret:        getEnv("JWT_SECRET", "change-me"),
		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisFanout:   getEnvAsBool("REDIS_FANOUT", false),

		BlobDriver:    getEnv("BLOB_DRIVER", "s3"),
		S3Region:      getEnv("S3_REGION", "eu-west-3"),
		S3Bucket:      getEnv("S3_BUCKET", "relay-chat"),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3PublicBase:  getEnv("S3_PUBLIC_BASE", ""),
		MinioEndpoint: getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioUseSSL:   getEnvAsBool("MINIO_USE_SSL", false),
		SignedURLTTL:  getEnvAsDuration("SIGNED_URL_TTL", time.Hour),

		GroupChatsEnabled: getEnvAsBool("GROUP_CHATS_ENABLED", false),
		MessageRateLimit:  getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		PresenceSweepSpec: getEnv("PRESENCE_SWEEP_SPEC", "0 * * * * *"),
		PresenceMaxAge:    getEnvAsDuration("PRESENCE_MAX_AGE", 2*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "relay.audit"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "relay-chat"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
