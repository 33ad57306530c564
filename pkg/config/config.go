package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Groups   GroupsConfig
	Outbox   OutboxConfig
	PubSub   PubSubConfig
	Square   SquareConfig
	Payments PaymentsConfig
	Eventing EventingConfig
	Features FeatureFlags
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROUPBUY_APP_ENV" required:"true"`
	Port         string `envconfig:"GROUPBUY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROUPBUY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROUPBUY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GROUPBUY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GROUPBUY_DB_DSN"`
	Driver string `envconfig:"GROUPBUY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROUPBUY_DB_HOST"`
	LegacyPort     int    `envconfig:"GROUPBUY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROUPBUY_DB_USER"`
	LegacyPassword string `envconfig:"GROUPBUY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROUPBUY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROUPBUY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROUPBUY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROUPBUY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROUPBUY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPBUY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROUPBUY_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPBUY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPBUY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPBUY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROUPBUY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPBUY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROUPBUY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GROUPBUY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GROUPBUY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GROUPBUY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GroupsConfig tunes the group-buy lifecycle.
type GroupsConfig struct {
	// DefaultJoinWindow bounds how long a new group accepts members.
	DefaultJoinWindow time.Duration `envconfig:"GROUPBUY_GROUPS_JOIN_WINDOW" default:"24h"`
	// PaymentWindow is the fresh expiry granted when a group locks.
	PaymentWindow time.Duration `envconfig:"GROUPBUY_GROUPS_PAYMENT_WINDOW" default:"2h"`
	// SweepInterval is the cadence of the expiry scheduler.
	SweepInterval time.Duration `envconfig:"GROUPBUY_GROUPS_SWEEP_INTERVAL" default:"1m"`
	// CODMemberLimit is the largest active-member count still eligible for
	// cash-on-delivery settlement.
	CODMemberLimit int `envconfig:"GROUPBUY_GROUPS_COD_MEMBER_LIMIT" default:"5"`
	// VoucherShareTTL bounds how long a host-applied voucher discount stays
	// claimable by per-member checkouts.
	VoucherShareTTL time.Duration `envconfig:"GROUPBUY_GROUPS_VOUCHER_SHARE_TTL" default:"30m"`
	// MaxMembers is a hard ceiling regardless of the per-group target.
	MaxMembers int `envconfig:"GROUPBUY_GROUPS_MAX_MEMBERS" default:"50"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GROUPBUY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GROUPBUY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GROUPBUY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PubSubConfig struct {
	ProjectID       string `envconfig:"GROUPBUY_PUBSUB_PROJECT_ID"`
	GroupEventTopic string `envconfig:"GROUPBUY_PUBSUB_GROUP_EVENT_TOPIC" default:"gb-group-events"`
	CredentialsJSON string `envconfig:"GROUPBUY_PUBSUB_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"GROUPBUY_PUBSUB_CREDENTIALS_FILE"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"GROUPBUY_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"GROUPBUY_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"GROUPBUY_SQUARE_LOCATION_ID"`
}

// PaymentsConfig tunes settlement behavior outside the Square gateway.
type PaymentsConfig struct {
	// WireInstructionsBaseURL is where wire-transfer payers are redirected
	// to pick up bank instructions for their order.
	WireInstructionsBaseURL string `envconfig:"GROUPBUY_PAYMENTS_WIRE_URL" default:"https://pay.collectcart.com/wire"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GROUPBUY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"GROUPBUY_AUTO_MIGRATE" default:"false"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
