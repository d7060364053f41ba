package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"bilifav/internal/bili"
	"bilifav/internal/config"
	"bilifav/internal/library"
	"bilifav/internal/logging"
)

// App owns the collaborators behind every CLI operation.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *library.Store
	sessions *bili.SessionManager
	client   *bili.Client

	lockPath string
	lock     *flock.Flock
	locked   bool
}

// Option customizes App construction.
type Option func(*settings)

type settings struct {
	sessionOpts []bili.SessionOption
	clientOpts  []bili.ClientOption
}

// WithQRRenderer injects the terminal QR rendering callback used during
// interactive logins. Without it, logins still run but nothing is shown.
func WithQRRenderer(render bili.RenderFunc) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, bili.WithRenderer(render))
	}
}

// WithSessionOptions forwards options to the session manager (used in tests).
func WithSessionOptions(opts ...bili.SessionOption) Option {
	return func(s *settings) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithClientOptions forwards options to the remote client (used in tests).
func WithClientOptions(opts ...bili.ClientOption) Option {
	return func(s *settings) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// New assembles an App from configuration: credential store, session
// manager, remote client, and the library store. The caller is responsible
// for Close.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	sessions, err := bili.NewSessionManager(bili.NewFileCredentialStore(cfg.CredentialPath()), logger, s.sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	client, err := bili.NewClient(sessions, logger, s.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}
	store, err := library.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	lockPath := cfg.LockPath()
	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sessions: sessions,
		client:   client,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Close releases the instance lock and the library store.
func (a *App) Close() error {
	a.releaseLock()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// acquireLock guards mutating operations against concurrent bilifav
// processes sharing the same state directory.
func (a *App) acquireLock() error {
	if a.locked {
		return nil
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another bilifav instance is running (lock file %s)", a.lockPath)
	}
	a.locked = true
	return nil
}

func (a *App) releaseLock() {
	if !a.locked {
		return
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	a.locked = false
}

// ensureSession requires a stored credential before operations that assume a
// login. A stale credential is acceptable here: the client re-authenticates
// mid-run when the service rejects it.
func (a *App) ensureSession() error {
	if _, ok := a.sessions.Current(); !ok {
		return bili.ErrNotLoggedIn
	}
	return nil
}

// Login ensures an account session exists and reports the account it belongs
// to. force discards any stored credential first.
func (a *App) Login(ctx context.Context, force bool) (bili.Credential, *bili.Account, error) {
	if err := a.acquireLock(); err != nil {
		return bili.Credential{}, nil, err
	}

	if force {
		if err := a.sessions.Logout(); err != nil {
			return bili.Credential{}, nil, err
		}
	}
	if _, ok := a.sessions.Current(); !ok {
		if _, err := a.sessions.Login(ctx); err != nil {
			return bili.Credential{}, nil, err
		}
	}

	// Nav both verifies the session and resolves the account. A stale
	// stored credential triggers the client's re-login on this call.
	account, err := a.client.Nav(ctx)
	if err != nil {
		return bili.Credential{}, nil, fmt.Errorf("verify session: %w", err)
	}
	cred, _ := a.sessions.Current()
	a.logger.Info("session active",
		logging.String("user", account.Name),
		logging.Int64("mid", account.Mid),
		logging.Bool("member", account.Privileged()))
	return cred, account, nil
}

// Logout removes the stored credential. The returned flag reports whether a
// credential existed.
func (a *App) Logout() (bool, error) {
	if err := a.acquireLock(); err != nil {
		return false, err
	}
	_, had := a.sessions.Current()
	if err := a.sessions.Logout(); err != nil {
		return had, err
	}
	if had {
		a.logger.Info("credential removed")
	}
	return had, nil
}
