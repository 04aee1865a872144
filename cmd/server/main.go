package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/proto"
	"github.com/matst80/hookcast/internal/ratelimit"
	"github.com/matst80/hookcast/internal/relay"
)

func main() {
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	if cfg.Secret == "" {
		obs.Error("server.config", obs.Fields{"err": "secret is required (-secret or HOOKCAST_SECRET)"})
		os.Exit(1)
	}
	obs.Info("server.start", obs.Fields{"bind": cfg.BindAddr, "metrics": cfg.MetricsAddr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := relay.NewHub(cfg.SendBuffer)

	var limiter *ratelimit.Limiter
	if cfg.ConnRateGlobal > 0 || cfg.ConnRatePerIP > 0 {
		limiter = ratelimit.NewLimiter(cfg.ConnRateGlobal, cfg.ConnRatePerIP, cfg.ConnBurst)
	}

	mux := http.NewServeMux()
	mux.Handle(proto.TunnelPath, relay.NewTunnelHandler(hub, relay.SessionConfig{
		Secret:       cfg.Secret,
		AuthTimeout:  cfg.AuthTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PingInterval: cfg.PingInterval,
	}, limiter))
	mux.Handle("/", relay.NewIngressHandler(hub, cfg.MaxBody))

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           mux,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	// Tunnel connections are hijacked websockets, so no server WriteTimeout:
	// it would sever long-lived sessions. Session writes carry their own
	// deadlines.

	status := newServerStatus()
	go startMetricsServer(cfg.MetricsAddr, hub, status)

	// Readiness flips only once the public listener is actually bound.
	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		obs.Error("listen.public", obs.Fields{"err": err.Error(), "addr": cfg.BindAddr})
		os.Exit(1)
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	status.setReady(true)
	obs.Info("server.ready", obs.Fields{"addr": ln.Addr().String()})

	select {
	case err := <-errCh:
		obs.Error("listen.public", obs.Fields{"err": err.Error(), "addr": cfg.BindAddr})
		os.Exit(1)
	case <-ctx.Done():
	}

	obs.Info("server.shutdown.signal", obs.Fields{})
	status.setClosing(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Error("server.shutdown", obs.Fields{"err": err.Error()})
	}
	hub.Close()
	obs.Info("server.shutdown.complete", obs.Fields{})
}
