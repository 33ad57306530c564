package config

const (
	EnvPrefix = "groupbuy"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "GROUPBUY_APP_ENV"
	EnvPort     = "GROUPBUY_APP_PORT"
	EnvDBDSN    = "GROUPBUY_DB_DSN"
	EnvDBHost   = "GROUPBUY_DB_HOST"
	EnvDBUser   = "GROUPBUY_DB_USER"
	EnvDBName   = "GROUPBUY_DB_NAME"
	EnvRedisURL = "GROUPBUY_REDIS_URL"

	EnvJWTSecret = "GROUPBUY_JWT_SECRET"
	EnvJWTIssuer = "GROUPBUY_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
