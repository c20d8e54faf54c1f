package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CacheRedis = "redis"
	CacheLRU   = "lru"

	BusKafka = "kafka"
	BusNATS  = "nats"
)

type Postgres struct {
	Host     string
	Port     string
	DB       string
	User     string
	Password string
	SSLMode  string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers    []string
	Topic      string
	Group      string
	Workers    int
	Partitions int
}

type NATS struct {
	URL     string
	Subject string
}

type Outbox struct {
	Enabled  bool
	Interval time.Duration
	Batch    int
}

type Breaker struct {
	Threshold   uint32
	OpenTimeout time.Duration
	MaxHalfOpen uint32
}

type Retry struct {
	Attempts     int
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

type Config struct {
	HTTPAddr    string
	LogDev      bool
	CacheDriver string
	CacheCap    int
	BusDriver   string

	// OrdersRPS limits POST /orders across all clients; zero disables it.
	OrdersRPS   float64
	OrdersBurst int

	Pg      Postgres
	Redis   Redis
	Kafka   Kafka
	NATS    NATS
	Outbox  Outbox
	Breaker Breaker
	Retry   Retry
}

// Load fatals on error for simplicity in main().
func Load() Config {
	cfg, err := load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	return cfg
}

func load() (Config, error) {
	_ = godotenv.Load("env/.env")

	cfg := Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		LogDev:      envBool("LOG_DEV", false),
		CacheDriver: strings.ToLower(envDefault("CACHE_DRIVER", CacheRedis)),
		CacheCap:    envInt("CACHE_CAP", 10000),
		BusDriver:   strings.ToLower(envDefault("BUS_DRIVER", BusKafka)),
		OrdersRPS:   envFloat64("ORDERS_RPS", 0),
		OrdersBurst: envInt("ORDERS_BURST", 20),

		Pg: Postgres{
			Host:     strings.TrimSpace(os.Getenv("PG_HOST")),
			Port:     strings.TrimSpace(envDefault("PG_PORT", "5432")),
			DB:       strings.TrimSpace(os.Getenv("PG_DB")),
			User:     strings.TrimSpace(os.Getenv("PG_USER")),
			Password: strings.TrimSpace(os.Getenv("PG_PASSWORD")),
			SSLMode:  strings.TrimSpace(envDefault("PG_SSLMODE", "disable")),
		},

		Redis: Redis{
			Addr:     envDefault("REDIS_ADDR", "localhost:6379"),
			Password: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
			DB:       envInt("REDIS_DB", 0),
		},

		Kafka: Kafka{
			Brokers:    splitCSV(strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))),
			Topic:      envDefault("KAFKA_TOPIC", "orders.placed"),
			Group:      envDefault("KAFKA_GROUP", "enrollments"),
			Workers:    envInt("KAFKA_WORKERS", 4),
			Partitions: envInt("KAFKA_PARTITIONS", 3),
		},

		NATS: NATS{
			URL:     envDefault("NATS_URL", "nats://localhost:4222"),
			Subject: envDefault("NATS_SUBJECT", "orders.placed"),
		},

		Outbox: Outbox{
			Enabled:  envBool("ORDERS_OUTBOX", false),
			Interval: envDurationMS("OUTBOX_INTERVAL", 2*time.Second),
			Batch:    envInt("OUTBOX_BATCH", 100),
		},

		Breaker: Breaker{
			Threshold:   envUint32("BREAKER_THRESHOLD", 5),
			OpenTimeout: envDurationMS("BREAKER_OPENTIMEOUT", 10*time.Second),
			MaxHalfOpen: envUint32("BREAKER_MAXHALFOPEN", 3),
		},

		Retry: Retry{
			Attempts:     envInt("RETRY_ATTEMPTS", 5),
			Base:         envDurationMS("RETRY_BASE", 100*time.Millisecond),
			Max:          envDurationMS("RETRY_MAX", 5*time.Second),
			JitterFactor: envFloat64("RETRY_JITTERFACTOR", 0.3),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	req := map[string]string{
		"PG_HOST":     c.Pg.Host,
		"PG_DB":       c.Pg.DB,
		"PG_USER":     c.Pg.User,
		"PG_PASSWORD": c.Pg.Password,
	}
	if c.BusDriver == BusKafka {
		req["KAFKA_BROKERS"] = strings.Join(c.Kafka.Brokers, ",")
	}
	if c.CacheDriver == CacheRedis {
		req["REDIS_ADDR"] = c.Redis.Addr
	}
	if c.BusDriver == BusNATS {
		req["NATS_URL"] = c.NATS.URL
	}
	for k, v := range req {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &missingEnvError{Keys: missing}
	}

	switch c.CacheDriver {
	case CacheRedis, CacheLRU:
	default:
		return &invalidEnvError{Key: "CACHE_DRIVER", Value: c.CacheDriver}
	}
	switch c.BusDriver {
	case BusKafka, BusNATS:
	default:
		return &invalidEnvError{Key: "BUS_DRIVER", Value: c.BusDriver}
	}
	return nil
}

func (c *Config) normalize() {
	if c.CacheCap <= 0 {
		log.Printf("CACHE_CAP is %d, adjusting to 1", c.CacheCap)
		c.CacheCap = 1
	}
	if c.Kafka.Workers <= 0 {
		c.Kafka.Workers = 1
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 1
	}
	if c.OrdersRPS < 0 {
		c.OrdersRPS = 0
	}
	if c.OrdersBurst < 1 {
		c.OrdersBurst = 1
	}
	if c.Outbox.Batch <= 0 {
		c.Outbox.Batch = 100
	}
	if c.Retry.Attempts < 0 {
		log.Printf("RETRY_ATTEMPTS is %d, adjusting to 0", c.Retry.Attempts)
		c.Retry.Attempts = 0
	}
	if c.Retry.Base <= 0 {
		log.Printf("RETRY_BASE is %v, adjusting to 100ms", c.Retry.Base)
		c.Retry.Base = 100 * time.Millisecond
	}
	if c.Retry.Max < c.Retry.Base {
		log.Printf("RETRY_MAX (%v) < RETRY_BASE (%v), adjusting max to base", c.Retry.Max, c.Retry.Base)
		c.Retry.Max = c.Retry.Base
	}
}

type missingEnvError struct{ Keys []string }

func (e *missingEnvError) Error() string {
	return "missing required envs: " + strings.Join(e.Keys, ", ")
}

type invalidEnvError struct{ Key, Value string }

func (e *invalidEnvError) Error() string {
	return "invalid " + e.Key + "=" + strconv.Quote(e.Value)
}

// DSN builds a proper Postgres URL, safely escaping user/pass and query.
func (c Config) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Pg.User, c.Pg.Password),
		Host:   net.JoinHostPort(c.Pg.Host, c.Pg.Port),
		Path:   "/" + c.Pg.DB,
	}
	q := url.Values{}
	if c.Pg.SSLMode != "" {
		q.Set("sslmode", c.Pg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func envDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %t: %v", k, v, def, err)
		return def
	}
	return b
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return n
}

func envUint32(k string, def uint32) uint32 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return uint32(u)
}

func envFloat64(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %.3f: %v", k, v, def, err)
		return def
	}
	return f
}

// envDurationMS supports either plain integer milliseconds ("1500") or
// Go duration strings ("1.5s", "250ms", "2m").
func envDurationMS(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) != -1 {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid %s=%q, using default %v: %v", k, v, def, err)
			return def
		}
		return d
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v: %v", k, v, def, err)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
