package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv loads variables from a dotenv file (the -env flag, or ./.env when
// present) without overriding variables already set in the process, and then
// copies the recognised variables into config.
//
// Recognised variables:
//
//	PORT / HTTP_ADDR                      HTTP bind (PORT yields ":<port>")
//	DATABASE_DSN                          PostgreSQL DSN
//	ACCESS_TOKEN_SECRET / REFRESH_TOKEN_SECRET
//	ACCESS_TOKEN_EXPIRY / REFRESH_TOKEN_EXPIRY   Go durations ("15m", "240h")
//	BCRYPT_COST
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT, S3_PUBLIC_URL
//	UPLOAD_DIR, COOKIE_SECURE, AVATAR_REQUIRED, COVER_IMAGE_ENABLED
//	LOG_FORMAT, LOG_LEVEL
func parseEnv(config *Config) error {
	file := flagx.EnvFileFlag()
	if file == "" {
		file = defaultEnvFile
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", file, err)
	}

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		config.EndpointAddrHTTP = ":" + v
	}
	setString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
	setString(&config.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")
	setString(&config.S3RootUser, "S3_ROOT_USER")
	setString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.S3PublicURL, "S3_PUBLIC_URL")
	setString(&config.UploadDir, "UPLOAD_DIR")
	setString(&config.LogFormat, "LOG_FORMAT")
	setString(&config.LogLevel, "LOG_LEVEL")

	if err := setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_EXPIRY"); err != nil {
		return err
	}
	if err := setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_EXPIRY"); err != nil {
		return err
	}
	if err := setInt(&config.BcryptCost, "BCRYPT_COST"); err != nil {
		return err
	}
	for name, dst := range map[string]*bool{
		"COOKIE_SECURE":       &config.CookieSecure,
		"AVATAR_REQUIRED":     &config.AvatarRequired,
		"COVER_IMAGE_ENABLED": &config.CoverImageEnabled,
	} {
		if err := setBool(dst, name); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*dst = b
	return nil
}
