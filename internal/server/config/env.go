package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "CREDKEEPER_"

// envConfig mirrors Config with pointer fields so that an unset variable
// can be told apart from one explicitly set to the zero value.
type envConfig struct {
	EndpointAddrHTTP             *string        `env:"HTTP_ADDR"`
	DatabaseDSN                  *string        `env:"DATABASE_DSN"`
	SecretKey                    *string        `env:"SECRET_KEY"`
	LogLevel                     *string        `env:"LOG_LEVEL"`
	SessionTokenValidityDuration *time.Duration `env:"SESSION_TTL"`
	OTPValidityDuration          *time.Duration `env:"OTP_TTL"`
	OTPLength                    *int           `env:"OTP_LENGTH"`
	OTPAlphabet                  *string        `env:"OTP_ALPHABET"`
	OTPReplaceExisting           *bool          `env:"OTP_REPLACE_EXISTING"`
	ResetTokenValidityDuration   *time.Duration `env:"RESET_TOKEN_TTL"`
	PendingRegistrationTTL       *time.Duration `env:"PENDING_REGISTRATION_TTL"`
	ReaperInterval               *time.Duration `env:"REAPER_INTERVAL"`
	BcryptCost                   *int           `env:"BCRYPT_COST"`
	FrontendURL                  *string        `env:"FRONTEND_URL"`
	SMTPHost                     *string        `env:"SMTP_HOST"`
	SMTPPort                     *int           `env:"SMTP_PORT"`
	SMTPUser                     *string        `env:"SMTP_USER"`
	SMTPPassword                 *string        `env:"SMTP_PASSWORD"`
	MailFrom                     *string        `env:"MAIL_FROM"`
	RedisAddr                    *string        `env:"REDIS_ADDR"`
	RedisPassword                *string        `env:"REDIS_PASSWORD"`
	RedisDB                      *int           `env:"REDIS_DB"`
	S3RootUser                   *string        `env:"S3_ROOT_USER"`
	S3RootPassword               *string        `env:"S3_ROOT_PASSWORD"`
	S3Bucket                     *string        `env:"S3_BUCKET"`
	S3Region                     *string        `env:"S3_REGION"`
	S3BaseEndpoint               *string        `env:"S3_BASE_ENDPOINT"`
	BootstrapAdminEmail          *string        `env:"BOOTSTRAP_ADMIN_EMAIL"`
}

// parseEnv overlays CREDKEEPER_* environment variables onto config.
// A malformed value (for example a non-numeric CREDKEEPER_BCRYPT_COST)
// panics, matching how the JSON and flag layers treat bad input.
func parseEnv(config *Config) {
	var e envConfig
	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}

	apply(&config.EndpointAddrHTTP, e.EndpointAddrHTTP)
	apply(&config.DatabaseDSN, e.DatabaseDSN)
	apply(&config.SecretKey, e.SecretKey)
	apply(&config.LogLevel, e.LogLevel)
	apply(&config.SessionTokenValidityDuration, e.SessionTokenValidityDuration)
	apply(&config.OTPValidityDuration, e.OTPValidityDuration)
	apply(&config.OTPLength, e.OTPLength)
	apply(&config.OTPAlphabet, e.OTPAlphabet)
	apply(&config.OTPReplaceExisting, e.OTPReplaceExisting)
	apply(&config.ResetTokenValidityDuration, e.ResetTokenValidityDuration)
	apply(&config.PendingRegistrationTTL, e.PendingRegistrationTTL)
	apply(&config.ReaperInterval, e.ReaperInterval)
	apply(&config.BcryptCost, e.BcryptCost)
	apply(&config.FrontendURL, e.FrontendURL)
	apply(&config.SMTPHost, e.SMTPHost)
	apply(&config.SMTPPort, e.SMTPPort)
	apply(&config.SMTPUser, e.SMTPUser)
	apply(&config.SMTPPassword, e.SMTPPassword)
	apply(&config.MailFrom, e.MailFrom)
	apply(&config.RedisAddr, e.RedisAddr)
	apply(&config.RedisPassword, e.RedisPassword)
	apply(&config.RedisDB, e.RedisDB)
	apply(&config.S3RootUser, e.S3RootUser)
	apply(&config.S3RootPassword, e.S3RootPassword)
	apply(&config.S3Bucket, e.S3Bucket)
	apply(&config.S3Region, e.S3Region)
	apply(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	apply(&config.BootstrapAdminEmail, e.BootstrapAdminEmail)
}

func apply[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
