package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // splitting list-valued variables
	"time"    // durations for the scanner interval
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	DBMaxOpenConns    int           // connection pool size
	DBMaxIdleConns    int           // idle connections kept in the pool
	DBConnMaxLifetime time.Duration // recycle connections after this long
	JWTSecret         string        // secret used to sign JWTs
	AccessTTLMin      int           // access token time-to-live in minutes
	RefreshTTLDays    int           // refresh token time-to-live in days
	BcryptCost        int           // bcrypt cost for password hashing
	BorrowAutoApprove bool          // deployments without librarian review approve borrows at creation
	ScanInterval      time.Duration // how often the due-date scanner runs
	CORSOrigins       []string      // allowed CORS origins, comma separated
}

// Load reads configuration values from environment variables and returns a
// Config.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:    mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:        mustInt("BCRYPT_COST"),
		BorrowAutoApprove: envBool("BORROW_AUTO_APPROVE", false),
		ScanInterval:      envDur("SCAN_INTERVAL", time.Hour),
		CORSOrigins:       splitCSV(envStr("CORS_ORIGINS", "*")),
	}
}

// splitCSV splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
