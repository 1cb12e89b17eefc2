// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

// Config holds the runtime configuration of the auth service.
type Config struct {
	Env  string // dev, test, prod
	Port string

	DBUser string
	DBPass string // may be empty
	DBHost string
	DBPort string
	DBName string

	JWTSecret        string
	JWTRefreshSecret string // defaults to JWTSecret
	JWTIssuer        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	OTPTTL            time.Duration
	ResetTokenTTL     time.Duration
	ResetURL          string // link base for reset mails; the token is appended as ?token=
	BcryptCost        int
	PasswordMinLength int

	LogLevel string
}

// LoadDotEnv reads the given .env files (default ".env") into the process
// environment. A missing file is not an error; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return oops.In("config").Code("DOTENV_FAILED").With("files", present).Wrap(err)
	}
	return nil
}

// Load reads the service configuration. Every missing required variable is
// reported in one error.
func Load() (Config, error) {
	return load(true)
}

// LoadWithoutDatabase is Load with the DB_* variables optional, for the
// in-memory store.
func LoadWithoutDatabase() (Config, error) {
	return load(false)
}

func load(withDB bool) (Config, error) {
	r := &reader{}
	dbVar := r.must
	if !withDB {
		dbVar = os.Getenv
	}
	cfg := Config{
		Env:    r.must("APP_ENV"),
		Port:   r.must("APP_PORT"),
		DBUser: dbVar("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: dbVar("DB_HOST"),
		DBPort: dbVar("DB_PORT"),
		DBName: dbVar("DB_NAME"),

		JWTSecret:  r.must("JWT_SECRET"),
		JWTIssuer:  envStr("JWT_ISSUER", "homestay-auth"),
		AccessTTL:  r.dur("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL: r.dur("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		OTPTTL:            r.dur("OTP_TTL", 5*time.Minute),
		ResetTokenTTL:     r.dur("RESET_TOKEN_TTL", time.Hour),
		ResetURL:          envStr("RESET_URL", "http://localhost:3000/reset-password"),
		BcryptCost:        r.int("BCRYPT_COST", 10),
		PasswordMinLength: r.int("PASSWORD_MIN_LENGTH", 6),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
	cfg.JWTRefreshSecret = envStr("JWT_REFRESH_SECRET", cfg.JWTSecret)
	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabaseConfig loads only the DB_* variables, for commands that do not need
// the full service configuration.
func DatabaseConfig() (Config, error) {
	r := &reader{}
	cfg := Config{
		DBUser: r.must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: r.must("DB_HOST"),
		DBPort: r.must("DB_PORT"),
		DBName: r.must("DB_NAME"),
	}
	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// reader collects problems instead of exiting on the first one.
type reader struct {
	missing []string
	invalid []string
}

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return def
	}
	return n
}

func (r *reader) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return d
}

func (r *reader) err() error {
	if len(r.missing) == 0 && len(r.invalid) == 0 {
		return nil
	}
	return oops.In("config").
		Code("CONFIG_INVALID").
		With("missing", r.missing).
		With("invalid", r.invalid).
		Errorf("configuration error: missing=[%s] invalid=[%s]",
			strings.Join(r.missing, ","), strings.Join(r.invalid, ","))
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
