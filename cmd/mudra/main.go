package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/signs"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mudra exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	logger.Info("Mudra - hand sign trainer", "data_dir", cfg.DataDir, "storage", cfg.Storage)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	persist, closeStore, err := openPersistence(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signStore := signs.NewStore(persist, logger)
	signStore.Load(ctx)

	hub := server.NewHub(logger)
	speech := loadSpeech(cfg, logger)

	// The tray drives the controller, so it is created after it; events
	// reach it through trayNotifier.
	var trayMenu *tray.Tray
	trayNotifier := notify.Func(func(e notify.Event) {
		if trayMenu != nil {
			trayMenu.Notify(e)
		}
	})

	notifiers := notify.Multi{notify.NewLogger(logger), hub, trayNotifier}
	if speech != nil {
		notifiers = append(notifiers, speech)
	}

	application := app.New(app.Config{
		Signs:        signStore,
		Notifier:     notifiers,
		Threshold:    cfg.Threshold,
		CameraID:     cfg.CameraID,
		MotionThresh: cfg.MotionThreshold,
		Logger:       logger,
	})
	defer application.Close()

	if cfg.Tray {
		trayMenu = tray.New(application.Controller(), logger)
	}

	staticDir := findWebDir(cfg)
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Session:   application.Controller(),
		Frames:    application.Source(),
		Events:    hub,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Addr) })
	if speech != nil {
		g.Go(func() error { return speech.Run(gctx) })
	}

	if trayMenu != nil {
		trayMenu.OnQuit(stop)
		trayMenu.OnOpen(func() { openBrowser(logger, localURL(cfg.Addr)) })
		go func() {
			<-gctx.Done()
			trayMenu.Quit()
		}()
		// systray needs the main goroutine.
		trayMenu.Run()
		stop()
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// openPersistence returns the configured vocabulary backend and a closer.
func openPersistence(cfg config.Config) (signs.Persistence, func() error, error) {
	switch cfg.Storage {
	case config.StorageFile:
		return signs.NewFilePersistence(cfg.VocabularyPath(), cfg.Compress), func() error { return nil }, nil
	default:
		st, err := store.New(cfg.DBPath())
		if err != nil {
			return nil, nil, fmt.Errorf("initialize store: %w", err)
		}
		return st.Vocabulary(), st.Close, nil
	}
}

// loadSpeech finds the speech plugin in the configured plugin directory or
// ./plugins. It returns nil when none is installed.
func loadSpeech(cfg config.Config, logger *slog.Logger) *plugin.SpeechNotifier {
	for _, dir := range []string{cfg.PluginDir, "plugins"} {
		mgr := plugin.NewManager(dir, logger)
		if err := mgr.Discover(); err != nil {
			logger.Warn("plugin discovery failed", "dir", dir, "err", err)
			continue
		}
		p, err := mgr.Get(cfg.SpeechPlugin)
		if err != nil {
			continue
		}
		if !p.Supports(plugin.ActionSpeak) {
			logger.Warn("plugin does not support speak", "plugin", p.Manifest.Name)
			continue
		}
		if _, err := os.Stat(p.Executable); err != nil {
			logger.Warn("speech plugin executable missing", "path", p.Executable)
			continue
		}
		logger.Info("speech enabled", "plugin", p.Manifest.Name, "dir", dir)
		return plugin.NewSpeechNotifier(p, plugin.NewExecutor(cfg.PluginTimeout), logger)
	}
	logger.Info("speech plugin not found, spoken feedback disabled")
	return nil
}

// findWebDir returns MUDRA_STATIC_DIR when set, otherwise the first of
// "web", "../web", "../../web" and <data dir>/web that exists.
func findWebDir(cfg config.Config) string {
	if cfg.StaticDir != "" {
		return cfg.StaticDir
	}

	candidates := []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(logger *slog.Logger, url string) {
	name := "xdg-open"
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "explorer"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		logger.Warn("failed to open browser", "url", url, "err", err)
	}
}
