// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"flag"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Storage backends accepted by -t / DATABASE_TYPE.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	Port                int
	DatabaseType        string
	DatabaseURL         string
	MongoDatabase       string
	JWTSecret           string
	DisableTransactions bool
	CookieSecure        bool
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("quickly-vote", flag.ContinueOnError)

	// Network and storage config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres, mongo or memory)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", "", "MongoDB database name")
	fs.BoolVar(&cfg.DisableTransactions, "no-tx", false, "Run the memory backend without transactions")
	fs.BoolVar(&cfg.CookieSecure, "cookie-secure", false, "Only accept the token cookie over HTTPS")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "JWT signing secret (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 4000 // default
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = BackendSQLite
		}
	}
	switch cfg.DatabaseType {
	case BackendSQLite, BackendPostgres, BackendMongo, BackendMemory:
	default:
		return Config{}, errors.Newf("unknown database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseType != BackendMemory {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = os.Getenv("MONGODB_DATABASE")
		if cfg.MongoDatabase == "" {
			cfg.MongoDatabase = "quickly_vote"
		}
	}

	var err error
	if !set["no-tx"] {
		if cfg.DisableTransactions, err = envBool("DISABLE_TRANSACTIONS"); err != nil {
			return Config{}, err
		}
	}
	if !set["cookie-secure"] {
		if cfg.CookieSecure, err = envBool("COOKIE_SECURE"); err != nil {
			return Config{}, err
		}
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	return cfg, nil
}

func envBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Newf("invalid %s env variable", name)
	}
	return b, nil
}
