// Command rms runs the real-time monitor service for a fleet of trading
// accounts: a polling engine over the broker manager bridge, a websocket
// push channel for subscribers, and one-shot query commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Mohanprasath-R/RMS/config"
	"github.com/Mohanprasath-R/RMS/internal/adapters/broker"
	"github.com/Mohanprasath-R/RMS/internal/adapters/console"
	"github.com/Mohanprasath-R/RMS/internal/adapters/storage"
	"github.com/Mohanprasath-R/RMS/internal/adapters/ws"
	"github.com/Mohanprasath-R/RMS/internal/domain"
	"github.com/Mohanprasath-R/RMS/internal/monitor"
	"github.com/Mohanprasath-R/RMS/internal/ports"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "start":
		runStart(args)
	case "websocket":
		runWebsocket(args)
	case "add":
		runAddRemove(args, true)
	case "remove":
		runAddRemove(args, false)
	case "snapshot":
		runSnapshot(args)
	case "exposure":
		runExposure(args)
	case "stats":
		runStats(args)
	case "export":
		runExport(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Real-time Monitor Service (RMS)

Usage:
  rms start     [--interval N] [--accounts id,id,...]   run the monitor loop
  rms websocket [--host H] [--port P] [--accounts ...]  run the push server
  rms add ID                                            add an account
  rms remove ID                                         remove an account
  rms snapshot  [--login-id ID] [--accounts ...]        print account snapshots
  rms exposure  [--symbol S] [--accounts ...]           print symbol exposure
  rms stats                                             print engine stats
  rms export    [--output PATH] [--accounts ...]        export state as JSON

Common flags: --config PATH (default config/config.yaml)
`)
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	configPath string
	accounts   string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	var c commonFlags
	fs.StringVar(&c.configPath, "config", "config/config.yaml", "path to config file")
	fs.StringVar(&c.accounts, "accounts", "", "comma-separated login ids to monitor")
	return &c
}

// setup loads config, applies the caller's overrides, configures
// logging and builds the engine.
func setup(c *commonFlags, override func(*config.Config)) (*config.Config, *monitor.Engine, ports.TickStorage) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", c.configPath)
		os.Exit(1)
	}
	if override != nil {
		override(cfg)
	}
	setupLogger(cfg.Log)

	client := broker.Dial(cfg.Manager.BaseURL, cfg.Manager.Login, cfg.Manager.Password)

	var store ports.TickStorage
	if cfg.Storage.DSN != "" {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open tick storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		store = s
	}

	engine := monitor.New(monitor.Config{
		UpdateInterval: cfg.UpdateInterval(),
		HistoryWindow:  cfg.HistoryWindow(),
		MaxAccounts:    cfg.Monitor.MaxMonitoredAccounts,
	}, client, store)

	for _, id := range parseAccounts(c.accounts) {
		engine.AddAccount(id)
	}
	return cfg, engine, store
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	c := registerCommon(fs)
	interval := fs.Int("interval", 0, "update interval in seconds (overrides config)")
	fs.Parse(args)

	cfg, engine, store := setup(c, func(cfg *config.Config) {
		if *interval > 0 {
			cfg.Monitor.UpdateIntervalSeconds = *interval
		}
	})
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		slog.Error("failed to start monitor", "err", err)
		os.Exit(1)
	}

	slog.Info("rms monitoring started",
		"interval", cfg.UpdateInterval(),
		"accounts", engine.MonitoredCount(),
	)

	<-ctx.Done()
	engine.Stop()
	slog.Info("rms stopped cleanly")
}

func runWebsocket(args []string) {
	fs := flag.NewFlagSet("websocket", flag.ExitOnError)
	c := registerCommon(fs)
	host := fs.String("host", "", "websocket host (overrides config)")
	port := fs.Int("port", 0, "websocket port (overrides config)")
	fs.Parse(args)

	cfg, engine, store := setup(c, func(cfg *config.Config) {
		if *host != "" {
			cfg.WebSocket.Host = *host
		}
		if *port > 0 {
			cfg.WebSocket.Port = *port
		}
	})
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		slog.Error("failed to start monitor", "err", err)
		os.Exit(1)
	}
	defer engine.Stop()

	server := ws.NewServer(engine, cfg.WSAddr())
	if err := server.Run(ctx); err != nil {
		slog.Error("websocket server exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("websocket server stopped cleanly")
}

func runAddRemove(args []string, add bool) {
	fs := flag.NewFlagSet("account", flag.ExitOnError)
	c := registerCommon(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "login id required")
		os.Exit(1)
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "invalid login id %q\n", fs.Arg(0))
		os.Exit(1)
	}

	_, engine, store := setup(c, nil)
	if store != nil {
		defer store.Close()
	}
	if add {
		engine.AddAccount(id)
	} else {
		engine.RemoveAccount(id)
	}
}

func runSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	c := registerCommon(fs)
	loginID := fs.Int("login-id", 0, "specific account id (omit for all)")
	fs.Parse(args)

	_, engine, store := setup(c, nil)
	if store != nil {
		defer store.Close()
	}
	if *loginID > 0 {
		engine.AddAccount(*loginID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	engine.RunOnce(ctx)

	out := console.New()
	if *loginID > 0 {
		snapshot, ok := engine.Snapshot(*loginID)
		if !ok {
			fmt.Println("No data available")
			return
		}
		out.PrintSnapshot(snapshot)
		return
	}
	out.PrintSnapshots(engine.SnapshotAll())
}

func runExposure(args []string) {
	fs := flag.NewFlagSet("exposure", flag.ExitOnError)
	c := registerCommon(fs)
	symbol := fs.String("symbol", "", "specific symbol (omit for all)")
	fs.Parse(args)

	_, engine, store := setup(c, nil)
	if store != nil {
		defer store.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	engine.RunOnce(ctx)

	out := console.New()
	if *symbol != "" {
		s := domain.SanitizeSymbol(*symbol)
		out.PrintPositions(s, engine.PositionsBySymbol(s))
		return
	}
	out.PrintExposure(engine.ExposureBySymbol())
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	c := registerCommon(fs)
	fs.Parse(args)

	_, engine, store := setup(c, nil)
	if store != nil {
		defer store.Close()
	}
	console.New().PrintStats(engine.Stats())
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	c := registerCommon(fs)
	output := fs.String("output", "", "output file path")
	fs.Parse(args)

	cfg, engine, store := setup(c, nil)
	if store != nil {
		defer store.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	engine.RunOnce(ctx)

	path := *output
	if path == "" {
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			slog.Error("failed to create export dir", "err", err, "dir", cfg.Export.Dir)
			os.Exit(1)
		}
		path = filepath.Join(cfg.Export.Dir, fmt.Sprintf("rms_export_%d.json", time.Now().Unix()))
	}

	if err := engine.Export(path); err != nil {
		slog.Error("export failed", "err", err)
		os.Exit(1)
	}
}

func parseAccounts(csv string) []int {
	if csv == "" {
		return nil
	}
	var ids []int
	for _, part := range strings.Split(csv, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			slog.Warn("ignoring invalid login id", "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
