package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "LEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BrokerKafka  = "kafka"
	BrokerPubSub = "pubsub"
)

const (
	EnvAppEnv            = "LEDGER_APP_ENV"
	EnvLogFormat         = "LEDGER_LOG_FORMAT"
	EnvDBDSN             = "LEDGER_DB_DSN"
	EnvDBHost            = "LEDGER_DB_HOST"
	EnvDBUser            = "LEDGER_DB_USER"
	EnvDBName            = "LEDGER_DB_NAME"
	EnvDBPassword        = "LEDGER_DB_PASSWORD"
	EnvRedisURL          = "LEDGER_REDIS_URL"
	EnvBrokerKind        = "LEDGER_BROKER_KIND"
	EnvKafkaBrokers      = "LEDGER_KAFKA_BROKERS"
	EnvTopicVote         = "LEDGER_TOPIC_VOTE"
	EnvSettlementAddress = "LEDGER_SETTLEMENT_ADDRESS"
	EnvFeePercent        = "LEDGER_FEE_PERCENT"
	EnvDefaultVotePrice  = "LEDGER_DEFAULT_VOTE_PRICE"
	EnvTestingCohorts    = "LEDGER_TESTING_COHORTS"
	EnvFreezeAgeDays     = "LEDGER_FREEZE_AGE_DAYS"
	EnvFiatRates         = "LEDGER_FIAT_RATES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
