package config

const (
	EnvPrefix = "clubhouse"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv          = "CLUBHOUSE_APP_ENV"
	EnvPort            = "CLUBHOUSE_APP_PORT"
	EnvDBDSN           = "CLUBHOUSE_DB_DSN"
	EnvDBHost          = "CLUBHOUSE_DB_HOST"
	EnvDBUser          = "CLUBHOUSE_DB_USER"
	EnvDBName          = "CLUBHOUSE_DB_NAME"
	EnvRedisURL        = "CLUBHOUSE_REDIS_URL"
	EnvProviderBaseURL = "CLUBHOUSE_PROVIDER_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
