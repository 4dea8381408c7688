package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
	Env            string // deployment mode ("dev", "test", "prod"); gates dev-only response fields
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	AccessSecret   string // secret used to sign access tokens
	RefreshSecret  string // secret used to sign refresh tokens; must differ from AccessSecret
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	TokenIssuer    string // iss claim stamped into every token
	TokenAudience  string // aud claim stamped into every token
	PublicBaseURL  string // base URL used when building password-reset links
	StorageCloud   string // object storage cloud name
	StorageKey     string // object storage API key
	StorageSecret  string // object storage API secret
	StorageFolder  string // folder prefix for uploaded claim evidence
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The two token
// secrets must be distinct so that compromise of one cannot forge the other.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		AccessSecret:   must("ACCESS_TOKEN_SECRET"),
		RefreshSecret:  must("REFRESH_TOKEN_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		TokenIssuer:    envOr("TOKEN_ISSUER", "agritrust-connect"),
		TokenAudience:  envOr("TOKEN_AUDIENCE", "agritrust-clients"),
		PublicBaseURL:  envOr("PUBLIC_BASE_URL", "http://localhost:3000"),
		StorageCloud:   must("STORAGE_CLOUD_NAME"),
		StorageKey:     must("STORAGE_API_KEY"),
		StorageSecret:  must("STORAGE_API_SECRET"),
		StorageFolder:  envOr("STORAGE_FOLDER", "agritrust/claims"),
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatal("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	return cfg
}

// IsProd reports whether the service runs in production mode.  Flows consult
// this once at their boundary to decide whether development-only fields
// (raw verification/reset tokens) may appear in API responses.
func (c Config) IsProd() bool { return c.Env == "prod" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envOr returns the variable's value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
