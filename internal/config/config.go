// Package config loads application configuration from environment
// variables.  A .env file, when present, is loaded by cmd/server before
// any Load function runs.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
)

// Store drivers selectable through STORE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // APP_ENV: dev, test or prod
    Port           string // APP_PORT
    LogLevel       string // LOG_LEVEL: debug, info, warn, error
    StoreDriver    string // STORE_DRIVER: mysql (default) or memory
    DBUser         string // DB_USER
    DBPass         string // DB_PASS (optional)
    DBHost         string // DB_HOST
    DBPort         string // DB_PORT
    DBName         string // DB_NAME
    DBMigrate      bool   // DB_MIGRATE: create missing tables at startup
    JWTSecret      string // JWT_SECRET
    AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
    RefreshTTLDays int    // REFRESH_TOKEN_TTL_DAYS
    BcryptCost     int    // BCRYPT_COST
    AdminEmail     string // ADMIN_EMAIL: bootstrap administrator (optional)
    AdminPassword  string // ADMIN_PASSWORD
}

// loader accumulates missing or malformed required variables so that Load
// can report all of them at once.
type loader struct {
    errs []error
}

func (l *loader) must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || strings.TrimSpace(v) == "" {
        l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
    }
    return v
}

func (l *loader) mustInt(key string) int {
    s := l.must(key)
    if s == "" {
        return 0
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
    }
    return n
}

// Load reads the core configuration.  Database variables are only
// required when the MySQL store driver is selected.
func Load() (Config, error) {
    l := &loader{}
    cfg := Config{
        Env:            getenv("APP_ENV", "dev"),
        Port:           getenv("APP_PORT", "8080"),
        LogLevel:       getenv("LOG_LEVEL", "info"),
        StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverMySQL)),
        DBMigrate:      envBool("DB_MIGRATE", false),
        JWTSecret:      l.must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
        BcryptCost:     envInt("BCRYPT_COST", 12),
        AdminEmail:     os.Getenv("ADMIN_EMAIL"),
        AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
    }
    switch cfg.StoreDriver {
    case DriverMySQL:
        cfg.DBUser = l.must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS")
        cfg.DBHost = l.must("DB_HOST")
        cfg.DBPort = l.must("DB_PORT")
        cfg.DBName = l.must("DB_NAME")
    case DriverMemory:
    default:
        l.errs = append(l.errs, fmt.Errorf("invalid STORE_DRIVER %q: want mysql or memory", cfg.StoreDriver))
    }
    if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
        l.errs = append(l.errs, errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set"))
    }
    return cfg, errors.Join(l.errs...)
}
