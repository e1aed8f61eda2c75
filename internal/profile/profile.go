package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where streamscout stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Cache configuration
	EntityCacheTTL     time.Duration // STREAMSCOUT_ENTITY_CACHE_TTL (default: 1h)
	CommentCacheTTL    time.Duration // STREAMSCOUT_COMMENT_CACHE_TTL (default: 5m)
	LiveStatusCacheTTL time.Duration // STREAMSCOUT_LIVE_STATUS_CACHE_TTL (default: 12h)

	// Write buffer configuration
	FlushInterval time.Duration // STREAMSCOUT_FLUSH_INTERVAL (default: 30s)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv parses a duration environment variable, falling back to the
// default when unset or unparsable. Plain integers are treated as seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration env value, using default", "key", key, "value", raw)
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("STREAMSCOUT_DRIVER", "postgres")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("STREAMSCOUT_DSN")
	}

	p.EntityCacheTTL = getDurationEnv("STREAMSCOUT_ENTITY_CACHE_TTL", time.Hour)
	p.CommentCacheTTL = getDurationEnv("STREAMSCOUT_COMMENT_CACHE_TTL", 5*time.Minute)
	p.LiveStatusCacheTTL = getDurationEnv("STREAMSCOUT_LIVE_STATUS_CACHE_TTL", 12*time.Hour)
	p.FlushInterval = getDurationEnv("STREAMSCOUT_FLUSH_INTERVAL", 30*time.Second)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "streamscout")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/streamscout"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("streamscout_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	return nil
}
