package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type LogCfg struct {
	Level   string
	Console bool
	SampleN int
}

type RedisCfg struct {
	Addr        string
	KeyPrefix   string
	PoolSize    int
	DialTimeout time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr           string
	Log            LogCfg
	CatalogFile    string
	StyleBackend   string
	DataDir        string
	Redis          RedisCfg
	StyleFormat    string
	StyleMaxBytes  int64
	CRSCacheSize   int
	StoreOpTimeout time.Duration
	Events         EventsCfg
	Metrics        MetricsCfg
}

func FromEnv() Config {
	backend := strings.ToLower(strings.TrimSpace(getenv("STYLE_BACKEND", BackendFile)))
	switch backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		backend = BackendFile
	}

	maxBytes := getint64("STYLE_MAX_BYTES", 1<<20)
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return Config{
		Addr: getenv("ADDR", ":8090"),
		Log: LogCfg{
			Level:   getenv("LOG_LEVEL", "info"),
			Console: getbool("LOG_CONSOLE", false),
			SampleN: getint("LOG_SAMPLE_N", 0),
		},
		CatalogFile:  getenv("CATALOG_FILE", "catalog.yaml"),
		StyleBackend: backend,
		DataDir:      getenv("DATA_DIR", "./data"),
		Redis: RedisCfg{
			Addr:        getenv("REDIS_ADDR", "localhost:6379"),
			KeyPrefix:   getenv("REDIS_KEY_PREFIX", "styles"),
			PoolSize:    getint("REDIS_POOL_SIZE", 16),
			DialTimeout: getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		},
		StyleFormat:    strings.ToLower(getenv("STYLE_FORMAT", "ysld")),
		StyleMaxBytes:  maxBytes,
		CRSCacheSize:   getint("CRS_CACHE_SIZE", 256),
		StoreOpTimeout: getduration("STORE_OP_TIMEOUT", 500*time.Millisecond),
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "style-changes"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// BrokerList splits the comma separated broker string, dropping blanks.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
