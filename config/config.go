// Package config holds the process configuration and its loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const DateLayout = "2006-01-02"

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LogLevel is a logrus level name: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// CredentialsEnv names the variable holding inline service account JSON.
	CredentialsEnv string `koanf:"credentials_env"`
	// CredentialsFile is read when CredentialsEnv is unset.
	CredentialsFile string `koanf:"credentials_file"`
	// CredentialsTempPath is where inline credentials are written.
	CredentialsTempPath string `koanf:"credentials_temp_path"`

	APIBase string `koanf:"api_base"`

	StartDate       string  `koanf:"start_date"`
	EndDate         string  `koanf:"end_date"`
	MaxCloudPercent float64 `koanf:"max_cloud_percent"`
	Scale           float64 `koanf:"scale"`
	DefaultBufferKM int     `koanf:"default_buffer_km"`

	PrimaryCollection     string `koanf:"primary_collection"`
	PrimaryCloudProperty  string `koanf:"primary_cloud_property"`
	FallbackCollection    string `koanf:"fallback_collection"`
	FallbackCloudProperty string `koanf:"fallback_cloud_property"`

	// CacheHistory bounds how long a catalog search is reused. Zero disables the cache.
	CacheHistory time.Duration `koanf:"cache_history"`
	// RequestTimeout bounds the upstream work of a single request. Zero means no limit.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ThumbProxyBase, when set, makes returned image URLs point at this
	// service's /api/thumb/ route under the given base URL instead of Earth Engine.
	ThumbProxyBase string `koanf:"thumb_proxy_base"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:                  ":8080",
		LogLevel:              "info",
		CredentialsEnv:        "SERVICE_ACCOUNT_JSON",
		CredentialsFile:       "service-key.json",
		CredentialsTempPath:   filepath.Join(os.TempDir(), "service-key.json"),
		APIBase:               "https://earthengine.googleapis.com",
		StartDate:             "2022-01-01",
		EndDate:               "2024-02-01",
		MaxCloudPercent:       20,
		Scale:                 20,
		DefaultBufferKM:       5,
		PrimaryCollection:     "COPERNICUS/S2_SR_HARMONIZED",
		PrimaryCloudProperty:  "CLOUDY_PIXEL_PERCENTAGE",
		FallbackCollection:    "LANDSAT/LC09/C02/T1_TOA",
		FallbackCloudProperty: "CLOUD_COVER",
		CacheHistory:          10 * time.Minute,
		RequestTimeout:        60 * time.Second,
	}
}

// Window returns the parsed search date window.
func (c *Config) Window() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
	}
	end, err = time.Parse(DateLayout, c.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
	}
	return start, end, nil
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start_date %s must be before end_date %s", ErrInvalidConfig, c.StartDate, c.EndDate)
	}
	if c.MaxCloudPercent <= 0 || c.MaxCloudPercent > 100 {
		return fmt.Errorf("%w: max_cloud_percent must be in (0, 100], got %v", ErrInvalidConfig, c.MaxCloudPercent)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidConfig, c.Scale)
	}
	if c.DefaultBufferKM < 0 {
		return fmt.Errorf("%w: default_buffer_km must not be negative, got %d", ErrInvalidConfig, c.DefaultBufferKM)
	}
	if c.PrimaryCollection == "" || c.FallbackCollection == "" {
		return fmt.Errorf("%w: primary and fallback collections are required", ErrInvalidConfig)
	}
	return nil
}
