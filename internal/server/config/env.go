package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/flagx"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "PGFINDER_"

// lookupEnv is a seam for tests.
var lookupEnv = os.LookupEnv

// loadEnvFile loads a dotenv file. Variables already present in the
// environment are not overridden.
var loadEnvFile = func(path string) error {
	if path == "" {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// parseEnv overlays config with PGFINDER_* variables. A dotenv file given with
// -env, or ./.env when present, is loaded first. Malformed values panic.
//
// Variables:
//
//	PGFINDER_HTTP_ADDR, PGFINDER_GRPC_ADDR, PGFINDER_BASE_PATH, PGFINDER_DATABASE_DSN,
//	PGFINDER_SECRET_KEY, PGFINDER_ACCESS_TOKEN_TTL, PGFINDER_REFRESH_TOKEN_TTL,
//	PGFINDER_VERIFICATION_RESEND_THROTTLE, PGFINDER_STORE_TIMEOUT, PGFINDER_MAIL_TIMEOUT,
//	PGFINDER_FRONTEND_URL, PGFINDER_MAIL_FROM, PGFINDER_MAIL_TRANSPORT,
//	PGFINDER_AWS_REGION, PGFINDER_AWS_ACCESS_KEY_ID, PGFINDER_AWS_SECRET_ACCESS_KEY,
//	PGFINDER_AWS_ENDPOINT, PGFINDER_SECRET_ID, PGFINDER_ADMIN_EMAIL, PGFINDER_ADMIN_PASSWORD,
//	PGFINDER_DEV_MODE, PGFINDER_PASSWORD_HASH_COST, PGFINDER_CORS_ALLOW_ORIGINS, PGFINDER_LOG_LEVEL
func parseEnv(config *Config) {
	if err := loadEnvFile(flagx.EnvFileFlag()); err != nil {
		panic(err)
	}

	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.BasePath, "BASE_PATH")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	envDuration(&config.VerificationResendThrottle, "VERIFICATION_RESEND_THROTTLE")
	envDuration(&config.StoreTimeout, "STORE_TIMEOUT")
	envDuration(&config.MailTimeout, "MAIL_TIMEOUT")
	envString(&config.FrontendURL, "FRONTEND_URL")
	envString(&config.MailFrom, "MAIL_FROM")
	envString(&config.MailTransport, "MAIL_TRANSPORT")
	envString(&config.AWSRegion, "AWS_REGION")
	envString(&config.AWSAccessKeyID, "AWS_ACCESS_KEY_ID")
	envString(&config.AWSSecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	envString(&config.AWSEndpoint, "AWS_ENDPOINT")
	envString(&config.SecretsManagerSecretID, "SECRET_ID")
	envString(&config.AdminEmail, "ADMIN_EMAIL")
	envString(&config.AdminPassword, "ADMIN_PASSWORD")
	envBool(&config.DevMode, "DEV_MODE")
	envInt(&config.PasswordHashCost, "PASSWORD_HASH_COST")
	envString(&config.CORSAllowOrigins, "CORS_ALLOW_ORIGINS")
	envString(&config.LogLevel, "LOG_LEVEL")
}

func envString(dst *string, key string) {
	if v, ok := lookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	v, ok := lookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func envBool(dst *bool, key string) {
	v, ok := lookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envInt(dst *int, key string) {
	v, ok := lookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}
