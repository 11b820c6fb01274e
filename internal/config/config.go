package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr      string        // ex: ":9095"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Daemon controller
	ControllerURL  string        // ex: "http://127.0.0.1:9090"
	Secret         string        // bearer token, optional
	RequestTimeout time.Duration // REST timeout (default: 10s)

	// Topology + probes
	PollInterval     time.Duration // reconciliation period (default: 5s)
	ProbeConcurrency int           // limiter size (default: 15)
	ProbeURL         string        // latency test target
	ProbeTimeout     time.Duration // per-probe timeout (default: 2500ms)
	ProbeRatePerMin  int           // API rate limit on probe routes, per client
	ProbeBurst       int           // burst for the probe route limiter
	SitesFile        string        // optional YAML of site test targets

	// Telemetry
	LogStreamLevel   string        // minimum daemon log level subscribed (default: info)
	LogCapacity      int           // retained log entries (default: 500)
	LogFlushInterval time.Duration // log buffer flush period (default: 200ms)
	TrafficHistory   int           // retained traffic/memory samples (default: 30)

	// Redis (optional, empty address disables persistence)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 2s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 15s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 1s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, Host headers the API answers to
	AllowedCIDRS []string // optional, restrict API access to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenAddr:      getenv("SWB_LISTEN_ADDR", ":9095"),
		ShutdownTimeout: mustDuration("SWB_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SWB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SWB_PRETTY_LOG", true),

		// Daemon controller
		ControllerURL:  mustURL("SWB_CONTROLLER_URL"),
		Secret:         getenv("SWB_SECRET", ""),
		RequestTimeout: mustDuration("SWB_REQUEST_TIMEOUT", 10*time.Second),

		// Topology + probes
		PollInterval:     mustDuration("SWB_POLL_INTERVAL", 5*time.Second),
		ProbeConcurrency: getenvInt("SWB_PROBE_CONCURRENCY", 15),
		ProbeURL:         getenv("SWB_PROBE_URL", "http://www.gstatic.com/generate_204"),
		ProbeTimeout:     mustDuration("SWB_PROBE_TIMEOUT", 2500*time.Millisecond),
		ProbeRatePerMin:  getenvInt("SWB_PROBE_RATE_PER_MIN", 30),
		ProbeBurst:       getenvInt("SWB_PROBE_BURST", 10),
		SitesFile:        getenv("SWB_SITES_FILE", ""),

		// Telemetry
		LogStreamLevel:   getenv("SWB_LOG_STREAM_LEVEL", "info"),
		LogCapacity:      getenvInt("SWB_LOG_CAPACITY", 500),
		LogFlushInterval: mustDuration("SWB_LOG_FLUSH_INTERVAL", 200*time.Millisecond),
		TrafficHistory:   getenvInt("SWB_TRAFFIC_HISTORY", 30),

		// Redis settings
		RedisAddr:             getenv("SWB_REDIS_ADDR", ""),
		RedisUser:             getenv("SWB_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("SWB_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("SWB_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SWB_REDIS_DB", 0),
		RedisDT:               mustDuration("SWB_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("SWB_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("SWB_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("SWB_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("SWB_REDIS_PING_TIMEOUT", 2*time.Second),
		RedisPoolSize:         getenvInt("SWB_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("SWB_REDIS_CONNECT_TIMEOUT", 15*time.Second),
		RedisRetryInterval:    mustDuration("SWB_REDIS_RETRY_INTERVAL", time.Second),
		RedisWarnThreshold:    getenvInt("SWB_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SWB_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SWB_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SWB_TRUST_PROXY", false),
	}

	if cfg.ProbeConcurrency < 1 {
		panic(fmt.Sprintf("❌ FATAL: SWB_PROBE_CONCURRENCY must be >= 1, got %d", cfg.ProbeConcurrency))
	}
	if cfg.PollInterval <= 0 {
		panic(fmt.Sprintf("❌ FATAL: SWB_POLL_INTERVAL must be > 0, got %v", cfg.PollInterval))
	}

	// Validate Redis password configuration
	if cfg.RedisEnabled() && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SWB_REDIS_PASSWORD is required when SWB_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// RedisEnabled reports whether log history and snapshot persistence are on.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.Secret != "" {
		cp.Secret = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

// mustURL reads a required http(s) base URL and strips any trailing slash.
func mustURL(key string) string {
	v := requireEnv(key)
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		panic(fmt.Sprintf("❌ FATAL: %s must be an http(s) URL, got %q", key, v))
	}
	return strings.TrimRight(v, "/")
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
