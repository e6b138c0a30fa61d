package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/channel"
	"github.com/dsasheet/tui/internal/clock"
	"github.com/dsasheet/tui/internal/config"
	"github.com/dsasheet/tui/internal/logging"
	"github.com/dsasheet/tui/internal/session"
	"github.com/dsasheet/tui/internal/sound"
	"github.com/dsasheet/tui/internal/storage"
	"github.com/dsasheet/tui/internal/toast"
)

// stack is the wired client: config, storage, REST, session, and
// (optionally) the live channel.
type stack struct {
	cfg    *config.Config
	store  storage.Store
	client *api.Client
	sess   *session.Store
	toasts *toast.Queue
	mgr    *channel.Manager // nil for one-shot commands

	logFile *os.File
}

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newStack builds the client stack. With withChannel the websocket
// manager is created (but not started) and logs go to the configured
// file so they don't corrupt the TUI; otherwise logs go to stderr.
func newStack(withChannel bool) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st := &stack{cfg: cfg}

	var out io.Writer = os.Stderr
	if withChannel {
		// The TUI owns the terminal.
		out = io.Discard
		if cfg.Log.File != "" {
			f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err == nil {
				st.logFile = f
				out = f
			}
		}
	}
	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	}); err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	st.store = store

	st.client = api.NewClient(cfg.Server.URL, func() string {
		v, _, _ := store.Get(storage.KeyToken)
		return v
	})
	st.sess = session.New(st.client, store, slog.Default())
	st.client.SetUnauthorizedHook(st.sess.ForceAnonymous)
	st.toasts = toast.NewQueue(clock.System())

	if withChannel {
		var player sound.Player = sound.Muted{}
		if cfg.Sound.Enabled {
			player = sound.NewBeep()
		}
		dialer := &channel.WebsocketDialer{URL: cfg.WebsocketURL()}
		st.mgr = channel.New(dialer, clock.System(), st.sess, st.toasts, player, slog.Default())
	}
	return st, nil
}

func (s *stack) close() {
	if s.mgr != nil {
		s.mgr.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
}
