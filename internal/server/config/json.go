package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/flagx"
	"github.com/dmitrijs2005/pgfinder/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Duration fields use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Fields absent from the file keep their previous value.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	BasePath                     string          `json:"base_path"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RefreshTokenStoreTTL         *timex.Duration `json:"refresh_token_store_ttl"`
	VerificationTokenTTL         *timex.Duration `json:"verification_token_ttl"`
	VerificationResendThrottle   *timex.Duration `json:"verification_resend_throttle"`
	PasswordResetTokenTTL        *timex.Duration `json:"password_reset_token_ttl"`
	PasswordHashCost             int             `json:"password_hash_cost"`
	StoreTimeout                 *timex.Duration `json:"store_timeout"`
	MailTimeout                  *timex.Duration `json:"mail_timeout"`
	FrontendURL                  string          `json:"frontend_url"`
	MailFrom                     string          `json:"mail_from"`
	MailTransport                string          `json:"mail_transport"`
	AWSRegion                    string          `json:"aws_region"`
	AWSAccessKeyID               string          `json:"aws_access_key_id"`
	AWSSecretAccessKey           string          `json:"aws_secret_access_key"`
	AWSEndpoint                  string          `json:"aws_endpoint"`
	SecretsManagerSecretID       string          `json:"secrets_manager_secret_id"`
	AdminEmail                   string          `json:"admin_email"`
	AdminPassword                string          `json:"admin_password"`
	DevMode                      *bool           `json:"dev_mode"`
	DefaultPhoneRegion           string          `json:"default_phone_region"`
	CORSAllowOrigins             string          `json:"cors_allow_origins"`
	LogLevel                     string          `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flag into config. Without the flag nothing is loaded.
// An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.BasePath, c.BasePath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.RefreshTokenStoreTTL, c.RefreshTokenStoreTTL)
	setDuration(&config.VerificationTokenTTL, c.VerificationTokenTTL)
	setDuration(&config.VerificationResendThrottle, c.VerificationResendThrottle)
	setDuration(&config.PasswordResetTokenTTL, c.PasswordResetTokenTTL)
	if c.PasswordHashCost != 0 {
		config.PasswordHashCost = c.PasswordHashCost
	}
	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.MailTimeout, c.MailTimeout)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.MailTransport, c.MailTransport)
	setString(&config.AWSRegion, c.AWSRegion)
	setString(&config.AWSAccessKeyID, c.AWSAccessKeyID)
	setString(&config.AWSSecretAccessKey, c.AWSSecretAccessKey)
	setString(&config.AWSEndpoint, c.AWSEndpoint)
	setString(&config.SecretsManagerSecretID, c.SecretsManagerSecretID)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	if c.DevMode != nil {
		config.DevMode = *c.DevMode
	}
	setString(&config.DefaultPhoneRegion, c.DefaultPhoneRegion)
	setString(&config.CORSAllowOrigins, c.CORSAllowOrigins)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
