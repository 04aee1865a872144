package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/matst80/hookcast/internal/client"
	"github.com/matst80/hookcast/internal/forward"
	"github.com/matst80/hookcast/internal/history"
	"github.com/matst80/hookcast/internal/obs"
	"github.com/matst80/hookcast/internal/profile"
)

const usage = `usage: hookcast-client <command> [flags]

commands:
  connect     connect to a relay server and forward webhooks locally
  history     list | show | delete | clear | replay received requests
  profiles    list | add | delete named connection profiles

run 'hookcast-client <command> -h' for flags.`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"connect"}
	}
	var err error
	switch args[0] {
	case "connect":
		err = runConnect(args[1:])
	case "history":
		err = runHistory(args[1:])
	case "profiles":
		err = runProfiles(args[1:])
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		obs.Error("client.fatal", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
}

func runConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	var cfg connectConfig
	cfg.register(fs)
	_ = fs.Parse(args)
	if cfg.Debug {
		obs.EnableDebug(true)
	}

	prof := profile.Profile{Remote: cfg.Remote, Secret: cfg.Secret, Local: cfg.Local}
	if cfg.Profile != "" {
		path, err := profile.DefaultPath()
		if err != nil {
			return err
		}
		profiles, err := profile.Load(path)
		if err != nil {
			return err
		}
		loaded, ok := profiles.Get(cfg.Profile)
		if !ok {
			return fmt.Errorf("profile %s doesn't exist", cfg.Profile)
		}
		if cfg.Remote == "" {
			prof.Remote = loaded.Remote
		}
		if cfg.Secret == "" {
			prof.Secret = loaded.Secret
		}
		if !flagSet(fs, "local") {
			prof.Local = loaded.Local
		}
	}
	if prof.Remote == "" {
		return fmt.Errorf("remote is required (-remote, HOOKCAST_REMOTE or a profile)")
	}
	remote, local, err := prof.Prepare()
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.HistoryDir, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Info("client.start", obs.Fields{"remote": remote.String(), "local": local.String(), "name": cfg.Name})
	c := client.New(client.Config{
		Remote:           remote,
		Local:            local,
		Name:             cfg.Name,
		Secret:           prof.Secret,
		PingInterval:     cfg.PingInterval,
		MaxRetryInterval: cfg.MaxRetryInterval,
		Reconnect:        !cfg.NoReconnect,
	}, store)
	err = c.Run(ctx)
	if ctx.Err() != nil {
		obs.Info("client.stopped", obs.Fields{})
		return nil
	}
	return err
}

func runHistory(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookcast-client history list|show|delete|clear|replay [flags] [id]")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("history "+sub, flag.ExitOnError)
	var sc storeConfig
	sc.register(fs)
	localFlag := fs.String("local", envOr("HOOKCAST_LOCAL", "http://127.0.0.1:3000"), "local origin to replay against")
	_ = fs.Parse(rest)

	store, err := history.NewStore(sc.HistoryDir, sc.RedisAddr, sc.RedisPassword, sc.RedisDB)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch sub {
	case "list":
		items, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("history is empty")
			return nil
		}
		for _, item := range items {
			fmt.Printf("[%s %s] %s %s (%d bytes)\n",
				item.ID, item.ReceivedAt.Format("2006-01-02 15:04:05"),
				item.Request.Method, item.Request.FullPath, len(item.Request.Body))
		}
		return nil
	case "show":
		item, err := store.Get(ctx, requireID(fs))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", item.Request.Method, item.Request.FullPath)
		for _, h := range item.Request.Headers {
			fmt.Printf("%s: %s\n", h.Name, h.Value)
		}
		fmt.Printf("\n%s\n", item.Request.Body)
		return nil
	case "delete":
		if err := store.Delete(ctx, requireID(fs)); err != nil {
			return err
		}
		fmt.Println("item deleted")
		return nil
	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("history has been cleared")
		return nil
	case "replay":
		item, err := store.Get(ctx, requireID(fs))
		if err != nil {
			return err
		}
		local, err := url.Parse(*localFlag)
		if err != nil {
			return err
		}
		return forward.New(local).Forward(ctx, item.Request)
	default:
		return fmt.Errorf("unknown history command %q", sub)
	}
}

func runProfiles(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hookcast-client profiles list|add|delete [flags] [name]")
	}
	sub, rest := args[0], args[1:]

	path, err := profile.DefaultPath()
	if err != nil {
		return err
	}
	profiles, err := profile.Load(path)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		all := profiles.All()
		if len(all) == 0 {
			fmt.Println("no profiles")
			return nil
		}
		for name, p := range all {
			fmt.Printf("[%s] remote: %s local: %s\n", name, p.Remote, p.Local)
		}
		return nil
	case "add":
		fs := flag.NewFlagSet("profiles add", flag.ExitOnError)
		remote := fs.String("remote", "", "relay server origin (e.g. wss://hooks.example.com)")
		secret := fs.String("secret", "", "shared secret")
		local := fs.String("local", "http://127.0.0.1:3000", "local origin to forward to")
		_ = fs.Parse(rest)
		name := fs.Arg(0)
		if name == "" {
			name = "default"
		}
		if *remote == "" || *secret == "" {
			return fmt.Errorf("profiles add requires -remote and -secret")
		}
		if err := profiles.Add(name, profile.Profile{Remote: *remote, Secret: *secret, Local: *local}); err != nil {
			return err
		}
		fmt.Printf("profile %s added\n", name)
		return nil
	case "delete":
		fs := flag.NewFlagSet("profiles delete", flag.ExitOnError)
		_ = fs.Parse(rest)
		name := fs.Arg(0)
		if name == "" {
			return fmt.Errorf("profiles delete requires a name")
		}
		if err := profiles.Delete(name); err != nil {
			return err
		}
		fmt.Printf("profile %s deleted\n", name)
		return nil
	default:
		return fmt.Errorf("unknown profiles command %q", sub)
	}
}

func requireID(fs *flag.FlagSet) string {
	id := fs.Arg(0)
	if id == "" {
		fmt.Fprintln(os.Stderr, "an item id is required")
		os.Exit(2)
	}
	return id
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
