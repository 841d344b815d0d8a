package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App         AppConfig
	Service     ServiceConfig
	DB          DBConfig
	Redis       RedisConfig
	Broker      BrokerConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Ledger      LedgerConfig
	Freeze      FreezeConfig
	Eligibility EligibilityConfig
	Currency    CurrencyConfig
	Cron        CronConfig
	Ops         OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Broker.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LEDGER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LEDGER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LEDGER_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"LEDGER_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEDGER_SERVICE_KIND" default:"ledger-worker"`
}

type DBConfig struct {
	DSN string `envconfig:"LEDGER_DB_DSN"`

	LegacyHost     string `envconfig:"LEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGER_DB_USER"`
	LegacyPassword string `envconfig:"LEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGER_REDIS_URL"`
	Address      string        `envconfig:"LEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// BrokerConfig selects the event transport and names the topics consumed.
type BrokerConfig struct {
	Kind          string        `envconfig:"LEDGER_BROKER_KIND" default:"kafka"`
	KafkaBrokers  []string      `envconfig:"LEDGER_KAFKA_BROKERS" default:"localhost:9092"`
	KafkaGroupID  string        `envconfig:"LEDGER_KAFKA_GROUP_ID"`
	BatchSize     int           `envconfig:"LEDGER_BATCH_SIZE" default:"100"`
	BatchWait     time.Duration `envconfig:"LEDGER_BATCH_WAIT" default:"500ms"`
	VoteTopic     string        `envconfig:"LEDGER_TOPIC_VOTE"`
	SuggestTopic  string        `envconfig:"LEDGER_TOPIC_SUGGESTION"`
	SettleTopic   string        `envconfig:"LEDGER_TOPIC_SETTLEMENT"`
	ReferralTopic string        `envconfig:"LEDGER_TOPIC_REFERRAL"`
	AdTopic       string        `envconfig:"LEDGER_TOPIC_AD_PAYOUT"`
}

func (b BrokerConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.Kind)) {
	case BrokerKafka:
		if len(b.KafkaBrokers) == 0 {
			return fmt.Errorf("%s is required for kafka broker", EnvKafkaBrokers)
		}
	case BrokerPubSub:
	default:
		return fmt.Errorf("unsupported broker kind %q", b.Kind)
	}
	return nil
}

// GroupID returns the consumer group, defaulting to "{env}.ledger".
func (b BrokerConfig) GroupID(env string) string {
	if strings.TrimSpace(b.KafkaGroupID) != "" {
		return b.KafkaGroupID
	}
	return topicName(env, "ledger")
}

// Topics resolves every topic name, applying "{env}." prefixed defaults.
func (b BrokerConfig) Topics(env string) TopicNames {
	return TopicNames{
		Vote:       orDefault(b.VoteTopic, topicName(env, "payment.vote")),
		Suggestion: orDefault(b.SuggestTopic, topicName(env, "grant.suggestion")),
		Settlement: orDefault(b.SettleTopic, topicName(env, "settlement.payout")),
		Referral:   orDefault(b.ReferralTopic, topicName(env, "promo.referral")),
		AdPayout:   orDefault(b.AdTopic, topicName(env, "ads.payout")),
	}
}

// TopicNames carries the resolved topic name per event kind.
type TopicNames struct {
	Vote       string
	Suggestion string
	Settlement string
	Referral   string
	AdPayout   string
}

type GCPConfig struct {
	ProjectID       string `envconfig:"LEDGER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"LEDGER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	VoteSubscription       string `envconfig:"LEDGER_PUBSUB_VOTE_SUBSCRIPTION"`
	SuggestionSubscription string `envconfig:"LEDGER_PUBSUB_SUGGESTION_SUBSCRIPTION"`
	SettlementSubscription string `envconfig:"LEDGER_PUBSUB_SETTLEMENT_SUBSCRIPTION"`
	ReferralSubscription   string `envconfig:"LEDGER_PUBSUB_REFERRAL_SUBSCRIPTION"`
	AdSubscription         string `envconfig:"LEDGER_PUBSUB_AD_SUBSCRIPTION"`
}

// LedgerConfig holds the accounting constants.
type LedgerConfig struct {
	AltCurrency       string          `envconfig:"LEDGER_ALTCURRENCY" default:"BAT"`
	SettlementAddress string          `envconfig:"LEDGER_SETTLEMENT_ADDRESS" required:"true"`
	FeePercent        decimal.Decimal `envconfig:"LEDGER_FEE_PERCENT" default:"0.05"`
	DefaultVotePrice  decimal.Decimal `envconfig:"LEDGER_DEFAULT_VOTE_PRICE" default:"0.25"`
	TestingCohorts    []string        `envconfig:"LEDGER_TESTING_COHORTS" default:"test"`
}

func (l LedgerConfig) validate() error {
	if l.FeePercent.IsNegative() || l.FeePercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1)", EnvFeePercent)
	}
	if !l.DefaultVotePrice.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvDefaultVotePrice)
	}
	return nil
}

type FreezeConfig struct {
	AgeDays      int           `envconfig:"LEDGER_FREEZE_AGE_DAYS" default:"1"`
	PollInterval time.Duration `envconfig:"LEDGER_FREEZE_POLL_INTERVAL" default:"5s"`
	Timeout      time.Duration `envconfig:"LEDGER_FREEZE_TIMEOUT" default:"1h"`
	Schedule     string        `envconfig:"LEDGER_FREEZE_SCHEDULE" default:"0 * * * *"`
}

type EligibilityConfig struct {
	Enabled  bool          `envconfig:"LEDGER_ELIGIBILITY_ENABLED" default:"false"`
	BaseURL  string        `envconfig:"LEDGER_ELIGIBILITY_URL"`
	Token    string        `envconfig:"LEDGER_ELIGIBILITY_TOKEN"`
	Timeout  time.Duration `envconfig:"LEDGER_ELIGIBILITY_TIMEOUT" default:"2s"`
	CacheTTL time.Duration `envconfig:"LEDGER_ELIGIBILITY_CACHE_TTL" default:"10m"`
}

// CurrencyConfig maps fiat currency codes to the fiat value of one alt unit.
type CurrencyConfig struct {
	Rates map[string]string `envconfig:"LEDGER_FIAT_RATES" default:"USD:0.2"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"LEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"LEDGER_CRON_LOCK_TTL" default:"2h"`
	AdsPayoutSchedule string        `envconfig:"LEDGER_ADS_PAYOUT_SCHEDULE" default:"0 0 1 * *"`
	AdsPayoutEnabled  bool          `envconfig:"LEDGER_ADS_PAYOUT_ENABLED" default:"false"`
}

type OpsConfig struct {
	Addr string `envconfig:"LEDGER_OPS_ADDR" default:":9090"`
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

func topicName(env, suffix string) string {
	env = strings.TrimSpace(env)
	if env == "" {
		return suffix
	}
	return env + "." + suffix
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
