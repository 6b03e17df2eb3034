package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BusRedis = "redis"
	BusNats  = "nats"

	defaultPort     = "3001"
	defaultRedisURL = "redis://localhost:6379/0"
	defaultNatsURL  = "nats://127.0.0.1:4222"
)

type Config struct {
	ServerAddr       string
	ServerId         string
	RedisURL         string
	Bus              string
	NatsURL          string
	AllowedOrigins   []string
	Rooms            []string
	OpTimeout        time.Duration
	TypingTimeout    time.Duration
	MaxMessageLength int
	RateLimit        float64
	RateBurst        int
}

type StringSliceFlag []string

func (s *StringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSliceFlag) Set(value string) error {
	*s = nil
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func defaultServerId() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown"
}

// NewConfig parses args into a Config. Every flag takes its default from
// the environment, so a deployment can be configured with either.
func NewConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	origins := StringSliceFlag{}
	origins.Set(envOr("CORS_ORIGIN", "*"))
	rooms := StringSliceFlag{}
	rooms.Set(os.Getenv("ROOMS"))

	fs.StringVar(&cfg.ServerAddr, "addr", envOr("ADDR", ":"+envOr("PORT", defaultPort)), "server address")
	fs.StringVar(&cfg.ServerId, "server-id", envOr("SERVER_ID", defaultServerId()), "identifier of this instance")
	fs.StringVar(&cfg.RedisURL, "redis-url", envOr("REDIS_URL", defaultRedisURL), "redis connection url")
	fs.StringVar(&cfg.Bus, "bus", envOr("BUS", BusRedis), "event bus backend (redis or nats)")
	fs.StringVar(&cfg.NatsURL, "nats-url", envOr("NATS_URL", defaultNatsURL), "nats server url, used when -bus=nats")
	fs.Var(&origins, "allowed-origins", "comma-separated list of allowed origins for CORS and websockets")
	fs.Var(&rooms, "rooms", "comma-separated list of rooms created at startup")
	fs.DurationVar(&cfg.OpTimeout, "op-timeout", envDuration("OP_TIMEOUT", 3*time.Second), "timeout for store and bus operations")
	fs.DurationVar(&cfg.TypingTimeout, "typing-timeout", envDuration("TYPING_TIMEOUT", 5*time.Second), "idle time before a typing indicator is cleared, 0 disables")
	fs.IntVar(&cfg.MaxMessageLength, "max-message-length", envInt("MAX_MESSAGE_LENGTH", 1000), "maximum message length in characters")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", envFloat("RATE_LIMIT", 5), "messages per second allowed per connection")
	fs.IntVar(&cfg.RateBurst, "rate-burst", envInt("RATE_BURST", 10), "message burst allowed per connection")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = origins
	cfg.Rooms = rooms

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.ServerId == "" {
		return fmt.Errorf("server id cannot be empty")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis url cannot be empty")
	}

	switch c.Bus {
	case BusRedis:
	case BusNats:
		if c.NatsURL == "" {
			return fmt.Errorf("nats url cannot be empty")
		}
	default:
		return fmt.Errorf("unknown bus %q", c.Bus)
	}

	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin is required")
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("op timeout must be positive")
	}
	if c.TypingTimeout < 0 {
		return fmt.Errorf("typing timeout cannot be negative")
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit and burst must be positive")
	}

	return nil
}
