// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
)

const (
	envHTTPAddr          = "HOSTEL_HTTP_ADDR"
	envGRPCAddr          = "HOSTEL_GRPC_ADDR"
	envPGDSN             = "HOSTEL_PG_DSN"
	envRedisAddr         = "HOSTEL_REDIS_ADDR"
	envRedisPassword     = "HOSTEL_REDIS_PASSWORD"
	envTokenSecret       = "HOSTEL_TOKEN_SECRET"
	envTokenIssuer       = "HOSTEL_TOKEN_ISSUER"
	envAccessTTL         = "HOSTEL_ACCESS_TOKEN_TTL"
	envRefreshTTL        = "HOSTEL_REFRESH_TOKEN_TTL"
	envRememberMul       = "HOSTEL_REMEMBER_MULTIPLIER"
	envThresholds        = "HOSTEL_APPROVAL_THRESHOLDS"
	envAuditIncludeReads = "HOSTEL_AUDIT_INCLUDE_READS"
	envFailClosed        = "HOSTEL_FAIL_CLOSED_ON_MISSING_TENANT"
	envStoreTimeout      = "HOSTEL_STORE_TIMEOUT"
	envRateBurst         = "HOSTEL_RATE_BURST"
	envRatePerSec        = "HOSTEL_RATE_PER_SEC"
	envLogLevel          = "LOG_LEVEL"
	envBootstrapEmail    = "HOSTEL_BOOTSTRAP_ADMIN_EMAIL"
	envBootstrapPassword = "HOSTEL_BOOTSTRAP_ADMIN_PASSWORD"
	envBootstrapTenant   = "HOSTEL_BOOTSTRAP_TENANT"

	// DefaultThresholds gates destructive actions behind admin or top admin.
	DefaultThresholds = "delete_principal=4,delete_tenant=5,delete_room=4"
)

// Config is the resolved service configuration.
type Config struct {
	HTTPAddr      string
	GRPCAddr      string
	PGDSN         string
	RedisAddr     string
	RedisPassword string

	TokenSecret        string
	TokenIssuer        string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RememberMultiplier int

	ApprovalThresholds map[string]int
	AuditIncludeReads  bool
	FailClosed         bool

	StoreTimeout time.Duration
	RateBurst    int
	RatePerSec   float64
	LogLevel     string

	// Bootstrap settings seed the first top admin into in-memory stores.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapTenantName    string
}

// Load reads the optional .env files (existing variables win) and then the
// environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, f := range envFiles {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	var errs []error
	cfg := Config{
		HTTPAddr:               get(envHTTPAddr, ":8080"),
		GRPCAddr:               get(envGRPCAddr, ":9090"),
		PGDSN:                  get(envPGDSN, ""),
		RedisAddr:              get(envRedisAddr, ""),
		RedisPassword:          get(envRedisPassword, ""),
		TokenSecret:            get(envTokenSecret, ""),
		TokenIssuer:            get(envTokenIssuer, "hostelhub"),
		BootstrapAdminEmail:    get(envBootstrapEmail, ""),
		BootstrapAdminPassword: get(envBootstrapPassword, ""),
		BootstrapTenantName:    get(envBootstrapTenant, ""),
		LogLevel:               strings.ToLower(get(envLogLevel, "info")),
	}
	if v, ok := lookup(envGRPCAddr); ok && strings.TrimSpace(v) == "" {
		cfg.GRPCAddr = ""
	}

	cfg.AccessTokenTTL = parseDuration(get(envAccessTTL, "30m"), envAccessTTL, &errs)
	cfg.RefreshTokenTTL = parseDuration(get(envRefreshTTL, "168h"), envRefreshTTL, &errs)
	cfg.StoreTimeout = parseDuration(get(envStoreTimeout, "5s"), envStoreTimeout, &errs)
	cfg.RememberMultiplier = parseInt(get(envRememberMul, "4"), envRememberMul, 1, &errs)
	cfg.RateBurst = parseInt(get(envRateBurst, "50"), envRateBurst, 1, &errs)
	cfg.AuditIncludeReads = parseBool(get(envAuditIncludeReads, "false"), envAuditIncludeReads, &errs)
	cfg.FailClosed = parseBool(get(envFailClosed, "true"), envFailClosed, &errs)

	rate, err := strconv.ParseFloat(get(envRatePerSec, "20"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, fmt.Errorf("%s: must be a positive number", envRatePerSec))
	}
	cfg.RatePerSec = rate

	if len(cfg.TokenSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("%s: must be at least %d characters", envTokenSecret, auth.MinSecretLength))
	}
	if cfg.RefreshTokenTTL > 0 && cfg.AccessTokenTTL > 0 && cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		errs = append(errs, fmt.Errorf("%s: must not be shorter than %s", envRefreshTTL, envAccessTTL))
	}
	if cfg.BootstrapAdminPassword != "" {
		if cfg.BootstrapAdminEmail == "" {
			errs = append(errs, fmt.Errorf("%s: requires %s", envBootstrapPassword, envBootstrapEmail))
		} else if err := auth.ValidatePasswordStrength(cfg.BootstrapAdminPassword); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envBootstrapPassword, err))
		}
	}
	if err := validLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	thresholds, err := authz.ParseThresholds(get(envThresholds, DefaultThresholds))
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", envThresholds, err))
	}
	cfg.ApprovalThresholds = thresholds
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func parseDuration(raw, key string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return 0
	}
	return d
}

func parseInt(raw, key string, minimum int, errs *[]error) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum {
		*errs = append(*errs, fmt.Errorf("%s: must be an integer >= %d", key, minimum))
		return 0
	}
	return n
}

func parseBool(raw, key string, errs *[]error) bool {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return false
	}
	return b
}

func validLogLevel(level string) error {
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("%s: unknown level %q", envLogLevel, level)
}
