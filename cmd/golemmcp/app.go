package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golemhq/golemmcp/pkg/audit"
	"github.com/golemhq/golemmcp/pkg/config"
	"github.com/golemhq/golemmcp/pkg/manager"
	"github.com/golemhq/golemmcp/pkg/manifest"
	"github.com/golemhq/golemmcp/pkg/notify"
	"github.com/golemhq/golemmcp/pkg/permission"
	"github.com/golemhq/golemmcp/pkg/router"
	"github.com/golemhq/golemmcp/pkg/secrets"
	"time"
)

// app bundles the fully-wired component stack every subcommand needs.
type app struct {
	cfg      *config.Config
	cache    *manifest.Cache
	guard    *permission.Guard
	auditLog *audit.Log
	mgr      *manager.Manager
	router   *router.Router
	notify   *notify.Aggregator
	log      *slog.Logger
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".golemmcp")
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// newApp loads config, the manifest cache, the permission guard, the audit
// log, the manager, and the router, wiring them into one stack.
func newApp() (*app, error) {
	log := newLogger()

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}

	manifestPath := cfg.ManifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(configDir(), "mcp-manifest.json")
	}
	cache := manifest.New(manifestPath)
	if err := cache.Load(); err != nil {
		return nil, err
	}

	guard, err := permission.LoadRules(filepath.Join(configDir(), "permissions.yaml"))
	if err != nil {
		return nil, err
	}

	auditLog := audit.New(cfg.AuditCapacity)
	secretProvider := secrets.LoadFromEnv(cfg.SecretPrefix)
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond

	mgr := manager.New(cache, secretProvider, timeout)
	rt := router.New(cache, guard, mgr, auditLog, timeout)

	agg := buildNotifier(cfg, log)
	if agg != nil {
		mgr.Watch(managerNotifyWatcher{agg: agg})
	}

	return &app{
		cfg:      cfg,
		cache:    cache,
		guard:    guard,
		auditLog: auditLog,
		mgr:      mgr,
		router:   rt,
		notify:   agg,
		log:      log,
	}, nil
}

func buildNotifier(cfg *config.Config, log *slog.Logger) *notify.Aggregator {
	var backends []notify.Backend
	if cfg.Notify.Discord.Enabled {
		backend, err := notify.NewDiscordBackend(cfg.Notify.Discord.Token, cfg.Notify.Discord.ChannelID)
		if err != nil {
			log.Warn("notify: discord backend disabled", "error", err)
		} else {
			backends = append(backends, backend)
		}
	}
	if cfg.Notify.Slack.Enabled {
		backends = append(backends, notify.NewSlackBackend(cfg.Notify.Slack.Token, cfg.Notify.Slack.ChannelID))
	}
	if len(backends) == 0 {
		return nil
	}
	return notify.NewAggregator(func(backend string, err error) {
		log.Warn("notify: delivery failed", "backend", backend, "error", err)
	}, backends...)
}

// managerNotifyWatcher adapts a notify.Aggregator to manager.Watcher.
type managerNotifyWatcher struct{ agg *notify.Aggregator }

func (w managerNotifyWatcher) OnStateChange(server string, from, to manager.State) {
	severity := notify.SeverityInfo
	if to == manager.StateError {
		severity = notify.SeverityError
	}
	w.agg.Notify(notify.Event{
		Severity: severity,
		Title:    "server state change",
		Detail:   string(from) + " -> " + string(to),
		Server:   server,
	})
}

func (a *app) save() error {
	return a.cache.Save()
}
