package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// VENDHUB_-prefixed names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "VENDHUB_APP_ENV"
	EnvAppPort = "VENDHUB_APP_PORT"

	EnvDBDSN  = "VENDHUB_DB_DSN"
	EnvDBHost = "VENDHUB_DB_HOST"
	EnvDBUser = "VENDHUB_DB_USER"
	EnvDBName = "VENDHUB_DB_NAME"

	EnvJWTSecret = "VENDHUB_JWT_SECRET"
	EnvJWTIssuer = "VENDHUB_JWT_ISSUER"

	EnvStripeAPIKey         = "VENDHUB_STRIPE_API_KEY"
	EnvStripePublishableKey = "VENDHUB_STRIPE_PUBLISHABLE_KEY"
	EnvStripeWebhookSecret  = "VENDHUB_STRIPE_WEBHOOK_SECRET"

	EnvPickupTokenSecret = "VENDHUB_PICKUP_TOKEN_SECRET"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
