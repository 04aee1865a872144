package main

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration derived from flags, with env-var
// defaults so containers can run without arguments.
type Config struct {
	BindAddr    string
	MetricsAddr string
	Secret      string

	AuthTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	SendBuffer int
	MaxBody    int64

	ConnRateGlobal int
	ConnRatePerIP  int
	ConnBurst      int

	Debug bool
}

var cfg Config

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// init registers flags into the global flag set. main() simply parses and uses cfg.
func init() {
	flag.StringVar(&cfg.BindAddr, "bind", envOr("HOOKCAST_BIND_ADDR", ":8080"), "public webhook + tunnel listen address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", envOr("HOOKCAST_METRICS_ADDR", ":9100"), "metrics and health listen address")
	flag.StringVar(&cfg.Secret, "secret", os.Getenv("HOOKCAST_SECRET"), "shared secret clients must present")
	flag.DurationVar(&cfg.AuthTimeout, "auth-timeout", 10*time.Second, "time limit for a new tunnel connection to authenticate")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", 10*time.Second, "per-frame tunnel write deadline")
	flag.DurationVar(&cfg.PingInterval, "ping-interval", 30*time.Second, "tunnel keepalive ping interval")
	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 30*time.Second, "maximum time to read one inbound webhook request")
	flag.DurationVar(&cfg.ReadHeaderTimeout, "read-header-timeout", 10*time.Second, "maximum time to read inbound request headers")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for draining on shutdown")
	flag.IntVar(&cfg.SendBuffer, "send-buffer", 32, "per-client outbound queue depth; a client this far behind is dropped")
	flag.Int64Var(&cfg.MaxBody, "max-body", 10<<20, "maximum inbound webhook body bytes")
	flag.IntVar(&cfg.ConnRateGlobal, "conn-rate-global", envIntOr("HOOKCAST_CONN_RATE_GLOBAL", 0), "global tunnel connection attempts per second (0 = unlimited)")
	flag.IntVar(&cfg.ConnRatePerIP, "conn-rate", envIntOr("HOOKCAST_CONN_RATE", 0), "per-IP tunnel connection attempts per second (0 = unlimited)")
	flag.IntVar(&cfg.ConnBurst, "conn-burst", 5, "tunnel connection attempt burst size")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
	flag.Parse()
}
