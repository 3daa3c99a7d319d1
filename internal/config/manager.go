package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"lecturebot/pkg/logx"
)

// Manager holds the current config snapshot and hot-reloads the dynamic keys
// when the YAML file changes. Only TutorialVideoURL and LogLevel are dynamic;
// everything else (token, database, admin, verification chats) is fixed at
// startup, so edits to those fields are ignored until the next restart.
type Manager struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	cur Config
}

func NewManager(cfg Config, path string, log zerolog.Logger) *Manager {
	return &Manager{path: path, cur: cfg, log: log}
}

// Current returns the effective config snapshot.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// TutorialVideoURL is the hot path for handlers; it avoids copying the whole
// snapshot per message.
func (m *Manager) TutorialVideoURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.TutorialVideoURL
}

// Watch blocks until ctx is done, re-reading the config file on writes.
// It is a no-op when the bot was configured purely from the environment.
func (m *Manager) Watch(ctx context.Context) error {
	if strings.TrimSpace(m.path) == "" {
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	m.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")

	// Debounce: editors commonly emit several events per save, some of them
	// mid-write. Reload a beat after the last one.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, m.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				m.log.Warn().Err(err).Str("dir", dir).Msg("config watch error")
			}
		}
	}
}

func (m *Manager) reload() {
	next := defaults()
	if err := readFile(m.path, &next); err != nil {
		m.log.Warn().Err(err).Str("path", m.path).Msg("config reload rejected")
		return
	}
	applyEnv(&next)
	m.apply(next)
}

// apply folds the dynamic fields of next into the current snapshot.
func (m *Manager) apply(next Config) {
	m.mu.Lock()
	changedURL := next.TutorialVideoURL != m.cur.TutorialVideoURL
	changedLevel := next.LogLevel != m.cur.LogLevel
	m.cur.TutorialVideoURL = next.TutorialVideoURL
	m.cur.LogLevel = next.LogLevel
	m.mu.Unlock()

	if changedURL {
		m.log.Info().Str("url", next.TutorialVideoURL).Msg("tutorial video url updated")
	}
	if changedLevel {
		zerolog.SetGlobalLevel(logx.ParseLevel(next.LogLevel))
		m.log.Info().Str("level", next.LogLevel).Msg("log level updated")
	}
}
