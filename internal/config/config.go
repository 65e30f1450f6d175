package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/park285/rpsminus-bot/internal/domain"
	"github.com/park285/rpsminus-bot/internal/rps"
)

type AppConfig struct {
	IrisBaseURL   string `env:"IRIS_BASE_URL"`
	IrisWSURL     string `env:"IRIS_WS_URL"`
	IrisTransport string `env:"IRIS_TRANSPORT" envDefault:"auto"`
	// IrisWSDryRun logs socket replies instead of writing them.
	IrisWSDryRun bool `env:"IRIS_WS_DRYRUN"`

	BotPrefix string `env:"BOT_PREFIX"`

	XUserID    string `env:"X_USER_ID"`
	XUserEmail string `env:"X_USER_EMAIL"`
	XSessionID string `env:"X_SESSION_ID"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	AllowedRooms []string `env:"ALLOWED_ROOMS" envSeparator:","`

	DefaultDifficulty string `env:"RPS_DEFAULT_DIFFICULTY" envDefault:"easy"`
	FirstPickMS       int    `env:"RPS_FIRST_PICK_MS"      envDefault:"4000"`
	SecondPickMS      int    `env:"RPS_SECOND_PICK_MS"     envDefault:"4000"`
	DiscardMS         int    `env:"RPS_DISCARD_MS"         envDefault:"2000"`
	ResultHoldMS      int    `env:"RPS_RESULT_HOLD_MS"     envDefault:"3000"`
	MaxIdleRounds     int    `env:"RPS_MAX_IDLE_ROUNDS"    envDefault:"3"`
	MaxSessions       int    `env:"RPS_MAX_SESSIONS"       envDefault:"200"`
	MessagesDir       string `env:"RPS_MESSAGES_DIR"`
	RenderImages      bool   `env:"RPS_RENDER_IMAGES"      envDefault:"true"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads .env (if present) and the process environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.IrisBaseURL = strings.TrimSpace(c.IrisBaseURL)
	c.IrisWSURL = strings.TrimSpace(c.IrisWSURL)
	c.IrisTransport = strings.ToLower(strings.TrimSpace(c.IrisTransport))
	c.BotPrefix = strings.TrimSpace(c.BotPrefix)
	c.XUserID = strings.TrimSpace(c.XUserID)
	c.XUserEmail = strings.TrimSpace(c.XUserEmail)
	c.XSessionID = strings.TrimSpace(c.XSessionID)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)

	rooms := c.AllowedRooms[:0]
	for _, r := range c.AllowedRooms {
		if s := strings.TrimSpace(r); s != "" {
			rooms = append(rooms, s)
		}
	}
	c.AllowedRooms = rooms
}

func (c *AppConfig) validate() error {
	if c.IrisBaseURL == "" {
		return errors.New("IRIS_BASE_URL is required")
	}
	if c.IrisWSURL == "" {
		return errors.New("IRIS_WS_URL is required")
	}
	if c.BotPrefix == "" {
		return errors.New("BOT_PREFIX is required")
	}
	switch c.IrisTransport {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("IRIS_TRANSPORT must be http, ws or auto, got %q", c.IrisTransport)
	}
	if _, ok := domain.ParseDifficulty(c.DefaultDifficulty); !ok {
		return fmt.Errorf("RPS_DEFAULT_DIFFICULTY must be easy or hard, got %q", c.DefaultDifficulty)
	}
	for name, v := range map[string]int{
		"RPS_FIRST_PICK_MS":  c.FirstPickMS,
		"RPS_SECOND_PICK_MS": c.SecondPickMS,
		"RPS_DISCARD_MS":     c.DiscardMS,
		"RPS_RESULT_HOLD_MS": c.ResultHoldMS,
		"RPS_MAX_SESSIONS":   c.MaxSessions,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}
	if c.MaxIdleRounds < 0 {
		return errors.New("RPS_MAX_IDLE_ROUNDS must not be negative")
	}
	return nil
}

func (c *AppConfig) Difficulty() domain.Difficulty {
	d, _ := domain.ParseDifficulty(c.DefaultDifficulty)
	return d
}

func (c *AppConfig) Timings() rps.Timings {
	return rps.Timings{
		FirstPick:  time.Duration(c.FirstPickMS) * time.Millisecond,
		SecondPick: time.Duration(c.SecondPickMS) * time.Millisecond,
		Discard:    time.Duration(c.DiscardMS) * time.Millisecond,
		ResultHold: time.Duration(c.ResultHoldMS) * time.Millisecond,
	}
}
