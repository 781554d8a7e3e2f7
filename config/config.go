package config

import (
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is the whole service configuration, read from the environment.
type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	ServiceToken   string   `env:"LOTTERY_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	ActivitySweepInterval time.Duration `env:"ACTIVITY_SWEEP_INTERVAL" envDefault:"1m"`
	StockAuditInterval    time.Duration `env:"STOCK_AUDIT_INTERVAL" envDefault:"1m"`

	Redis  RedisConfig
	Lock   LockConfig
	Draw   DrawConfig
	R2     R2Config
	Upload UploadConfig
	Log    LogConfig

	// DotEnvLoaded reports whether a .env file was found.
	DotEnvLoaded bool
}

// RedisConfig is optional. An empty Addr switches the service to in-process
// lock and tracker implementations.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// LockConfig bounds the two lock classes.
type LockConfig struct {
	Enabled       bool          `env:"LOCK_ENABLED" envDefault:"true"`
	QuotaTTL      time.Duration `env:"LOCK_QUOTA_TTL" envDefault:"5s"`
	QuotaWait     time.Duration `env:"LOCK_QUOTA_WAIT" envDefault:"2s"`
	InventoryTTL  time.Duration `env:"LOCK_INVENTORY_TTL" envDefault:"10s"`
	InventoryWait time.Duration `env:"LOCK_INVENTORY_WAIT" envDefault:"3s"`
	RetryDelay    time.Duration `env:"LOCK_RETRY_DELAY" envDefault:"100ms"`
}

type DrawConfig struct {
	// ConcurrencyPolicy is skip or reject.
	ConcurrencyPolicy string        `env:"CONCURRENCY_POLICY" envDefault:"skip"`
	SlotTTL           time.Duration `env:"CONCURRENCY_SLOT_TTL" envDefault:"30s"`
	ReservationTTL    time.Duration `env:"QUOTA_RESERVATION_TTL" envDefault:"1m"`
}

// R2Config points at the Cloudflare R2 bucket for prize images.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// UploadConfig is the local-disk fallback for prize images when R2 is not
// configured. An empty Dir disables uploads entirely.
type UploadConfig struct {
	Dir       string `env:"UPLOAD_DIR"`
	URLPrefix string `env:"UPLOAD_URL_PREFIX" envDefault:"/uploads"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAgeDays int    `env:"LOG_MAX_DAYS" envDefault:"14"`
	Compress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	loaded := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "load .env")
		}
		loaded = false
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = loaded
	return &cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return errors.Wrap(err, "parse env")
	}
	return nil
}
