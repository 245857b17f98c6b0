// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server binary reads.
type Config struct {
	Addr         string
	DBPath       string
	LogLevel     logrus.Level
	LogJSON      bool
	RedisURL     string // empty disables Redis publishing
	RedisChannel string
	// BotDelay scales bot think time: one second plays bots at their
	// profile's pace, zero makes them move immediately.
	BotDelay        time.Duration
	CleanupInterval time.Duration
	SessionMaxAge   time.Duration
	WebDir          string
}

// Load reads the given env files (".env" when none are named), then the
// environment. Variables already set win over file values. A missing file is
// not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	c := Config{
		Addr:         ":" + getenv("PORT", "8080"),
		DBPath:       getenv("DB_PATH", "carioca.db"),
		RedisURL:     os.Getenv("REDIS_URL"),
		RedisChannel: getenv("REDIS_CHANNEL", "carioca:events"),
		WebDir:       getenv("WEB_DIR", "web"),
	}

	var err error
	if c.LogLevel, err = logrus.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch f := getenv("LOG_FORMAT", "text"); f {
	case "text":
	case "json":
		c.LogJSON = true
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT: unknown format %q", f)
	}

	ms, err := strconv.Atoi(getenv("BOT_DELAY_MS", "0"))
	if err != nil || ms < 0 {
		return Config{}, fmt.Errorf("BOT_DELAY_MS: invalid value %q", os.Getenv("BOT_DELAY_MS"))
	}
	c.BotDelay = time.Duration(ms) * time.Millisecond

	if c.CleanupInterval, err = duration("CLEANUP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if c.SessionMaxAge, err = duration("SESSION_MAX_AGE", time.Hour); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Logger builds the process logger described by c.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(c.LogLevel)
	if c.LogJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
