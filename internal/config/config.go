package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	GinMode      string
	DBDriver     string // "memory" or "sqlite"
	DBPath       string
	ConnTokenTTL time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:         3000,
		GinMode:      "release",
		DBDriver:     "memory",
		ConnTokenTTL: 2 * time.Minute,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	switch driver := env.Getenv("DB_DRIVER"); driver {
	case "", "memory":
	case "sqlite":
		cfg.DBDriver = "sqlite"
		cfg.DBPath = env.Getenv("DB_PATH")
		if cfg.DBPath == "" {
			return Config{}, fmt.Errorf("DB_PATH is required with DB_DRIVER=sqlite")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	if raw := env.Getenv("CONN_TOKEN_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid CONN_TOKEN_TTL_SECONDS")
		}
		cfg.ConnTokenTTL = time.Duration(seconds) * time.Second
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	return cfg, nil
}
