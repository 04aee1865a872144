package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"
)

// connectConfig holds the connect subcommand's runtime configuration. A named
// profile supplies remote/secret/local; explicit flags override it.
type connectConfig struct {
	Profile string
	Remote  string
	Secret  string
	Local   string
	Name    string

	PingInterval     time.Duration
	MaxRetryInterval time.Duration
	NoReconnect      bool
	Debug            bool

	storeConfig
}

// storeConfig selects the history backend, shared by connect and history.
type storeConfig struct {
	HistoryDir    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hookcast-history"
	}
	return filepath.Join(home, ".hookcast", "history")
}

func (c *storeConfig) register(fs *flag.FlagSet) {
	fs.StringVar(&c.HistoryDir, "history-dir", envOr("HOOKCAST_HISTORY_DIR", defaultHistoryDir()), "directory for the file history backend")
	fs.StringVar(&c.RedisAddr, "redis", os.Getenv("HOOKCAST_REDIS_ADDR"), "redis address for a shared history backend (empty = local files)")
	fs.StringVar(&c.RedisPassword, "redis-password", os.Getenv("HOOKCAST_REDIS_PASSWORD"), "redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis database number")
}

func (c *connectConfig) register(fs *flag.FlagSet) {
	fs.StringVar(&c.Profile, "profile", "", "named profile to load (flags override its values)")
	fs.StringVar(&c.Remote, "remote", os.Getenv("HOOKCAST_REMOTE"), "relay server origin (e.g. wss://hooks.example.com)")
	fs.StringVar(&c.Secret, "secret", os.Getenv("HOOKCAST_SECRET"), "shared secret")
	fs.StringVar(&c.Local, "local", envOr("HOOKCAST_LOCAL", "http://127.0.0.1:3000"), "local origin to forward requests to")
	fs.StringVar(&c.Name, "name", hostnameOr("dev"), "client name reported to the server")
	fs.DurationVar(&c.PingInterval, "ping-interval", 20*time.Second, "tunnel keepalive ping interval")
	fs.DurationVar(&c.MaxRetryInterval, "max-retry-interval", 30*time.Second, "reconnect backoff cap")
	fs.BoolVar(&c.NoReconnect, "no-reconnect", false, "exit instead of reconnecting when the tunnel drops")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug logs")
	c.storeConfig.register(fs)
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
