package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	AppPort string `env:"APP_PORT,default=8080"`
	AppMode string `env:"APP_MODE,default=debug"`
	LogMode string `env:"LOG_MODE,default=development"`

	StorageDriver string `env:"STORAGE_DRIVER,default=postgres"`
	DBHost        string `env:"DB_HOST,default=localhost"`
	DBUser        string `env:"DB_USER,default=postgres"`
	DBPassword    string `env:"DB_PASSWORD,default=postgres"`
	DBName        string `env:"DB_NAME,default=chatapp"`
	DBPort        string `env:"DB_PORT,default=5432"`
	MongoURI      string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDB       string `env:"MONGO_DB,default=chatapp"`

	RedisEnabled  bool   `env:"REDIS_ENABLED,default=false"`
	RedisHost     string `env:"REDIS_HOST,default=localhost"`
	RedisPort     string `env:"REDIS_PORT,default=6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	// Empty secret means sessions identify themselves with ?userId=.
	JWTSecret string `env:"JWT_SECRET"`

	EditWindow            time.Duration `env:"EDIT_WINDOW,default=4h"`
	RequireMessageContent bool          `env:"REQUIRE_MESSAGE_CONTENT,default=true"`
	EnforceChatMembership bool          `env:"ENFORCE_CHAT_MEMBERSHIP,default=true"`
	MaxMessageLength      int           `env:"MAX_MESSAGE_LENGTH,default=4000"`

	CORSOrigin string `env:"CORS_ORIGIN,default=*"`

	UploadDir      string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes int    `env:"MAX_UPLOAD_BYTES,default=10485760"`
	S3Region       string `env:"S3_REGION"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3PublicBase   string `env:"S3_PUBLIC_BASE"`

	MessageRateLimit  int           `env:"MESSAGE_RATE_LIMIT,default=30"`
	MessageRateWindow time.Duration `env:"MESSAGE_RATE_WINDOW,default=1m"`
	NameCacheTTL      time.Duration `env:"NAME_CACHE_TTL,default=10m"`
	WSSendBuffer      int           `env:"WS_SEND_BUFFER,default=256"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("config error: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.EditWindow <= 0 {
		return fmt.Errorf("config error: EDIT_WINDOW must be positive")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("config error: WS_SEND_BUFFER must be positive")
	}
	for _, origin := range c.CORSOrigins() {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("config error: CORS_ORIGIN entry %q must be * or an http(s) origin", origin)
		}
	}
	return nil
}

// CORSOrigins splits CORS_ORIGIN. A "*" entry allows any origin.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// PostgresDSN builds the connection string for the pgx driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// S3Enabled reports whether attachments go to object storage instead of UPLOAD_DIR.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}
