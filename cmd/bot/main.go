package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/bot"
	"lecturebot/internal/broadcast"
	"lecturebot/internal/config"
	"lecturebot/internal/health"
	"lecturebot/internal/storage"
	"lecturebot/internal/verify"
	"lecturebot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to optional yaml config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// No config, no log level; use a console logger for the diagnostic.
		l := logx.New(logx.Config{Console: true})
		l.Error().Err(err).Msg("configuration invalid")
		os.Exit(1)
	}
	log := logx.New(logx.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(
		storage.Config{Path: cfg.DatabasePath, BusyTimeout: 5 * time.Second},
		log.With().Str("component", "storage").Logger(),
	)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DatabasePath).Msg("database connection failed")
		os.Exit(1)
	}
	defer store.Close()
	log.Info().Str("path", cfg.DatabasePath).Msg("database ready")

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, _ tele.Context) {
			log.Error().Err(err).Msg("telegram error")
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram bot init failed")
		os.Exit(1)
	}

	verifier := verify.New(tb, cfg.RequiredChats(), log.With().Str("component", "verify").Logger())
	if verifier.Required() {
		log.Info().Str("mode", verifier.Mode()).Msg("membership verification enabled")
	} else {
		log.Info().Msg("no verification required; bot works without channel/group membership")
	}

	runner := broadcast.New(broadcast.Config{}, tb, store, log.With().Str("component", "broadcast").Logger())
	mgr := config.NewManager(cfg, cfgPath, log.With().Str("component", "config").Logger())
	app := bot.New(tb, store, verifier, runner, mgr, log.With().Str("component", "bot").Logger())

	go func() {
		hs := health.New(cfg.ListenAddr, log.With().Str("component", "health").Logger())
		if err := hs.Run(ctx); err != nil {
			log.Error().Err(err).Msg("health server failed")
		}
	}()
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	var stopDigest func()
	if cfg.DigestCron != "" {
		stopDigest, err = app.StartDigest(ctx, cfg.DigestCron)
		if err != nil {
			log.Error().Err(err).Msg("digest schedule invalid")
			os.Exit(1)
		}
	}

	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info().Msg("bot is now polling (private chats only)")
	app.Start(ctx)

	if stopDigest != nil {
		stopDigest()
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info().Msg("shutdown complete")
}
