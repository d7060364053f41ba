package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bilifav/internal/logging"
)

const (
	defaultPassportURL = "https://passport.bilibili.com"

	qrGeneratePath = "/x/passport-login/web/qrcode/generate"
	qrPollPath     = "/x/passport-login/web/qrcode/poll"

	// The QR code is valid for three minutes; the poll cadence matches the
	// web player.
	defaultPollInterval = time.Second
	defaultLoginBudget  = 180 * time.Second
)

// RenderFunc displays the login challenge payload to the user. The CLI owns
// the actual rendering; the session manager only hands over the URL encoded
// in the QR code.
type RenderFunc func(url string)

// SessionOption customises SessionManager construction.
type SessionOption func(*SessionManager)

// WithSessionHTTPClient overrides the HTTP client used for passport calls.
func WithSessionHTTPClient(client HTTPDoer) SessionOption {
	return func(m *SessionManager) {
		m.httpClient = client
	}
}

// WithPassportURL overrides the passport base URL (used in tests).
func WithPassportURL(baseURL string) SessionOption {
	return func(m *SessionManager) {
		m.passportURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPollInterval overrides the QR poll cadence (used in tests).
func WithPollInterval(interval time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.pollInterval = interval
	}
}

// WithLoginBudget overrides the total time allowed for a login attempt.
func WithLoginBudget(budget time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.loginBudget = budget
	}
}

// WithRenderer injects the challenge rendering callback.
func WithRenderer(render RenderFunc) SessionOption {
	return func(m *SessionManager) {
		m.render = render
	}
}

// SessionManager owns the active credential: initial load from the store,
// interactive QR login, and the mid-run re-authentication the client's
// interceptor invokes.
type SessionManager struct {
	store       CredentialStore
	httpClient  HTTPDoer
	passportURL string
	render      RenderFunc

	pollInterval time.Duration
	loginBudget  time.Duration
	logger       *slog.Logger

	mu   sync.RWMutex
	cred Credential
}

// NewSessionManager builds a SessionManager backed by the given store. The
// stored credential, if any, becomes the active one; a corrupt file is
// cleaned up and logged, leaving the manager logged out.
func NewSessionManager(store CredentialStore, logger *slog.Logger, opts ...SessionOption) (*SessionManager, error) {
	if store == nil {
		return nil, errors.New("credential store is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	mgr := &SessionManager{
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		passportURL:  defaultPassportURL,
		pollInterval: defaultPollInterval,
		loginBudget:  defaultLoginBudget,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(mgr)
	}

	cred, err := store.Load()
	switch {
	case errors.Is(err, ErrCorruptCredential):
		mgr.logger.Warn("removed unreadable credential file, login required", logging.Error(err))
	case err != nil:
		return nil, err
	default:
		mgr.cred = cred
	}
	return mgr, nil
}

// Current returns the active credential and whether it is complete.
func (m *SessionManager) Current() (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred, m.cred.Complete()
}

// Login runs the QR flow, validates the returned credential, persists it,
// and makes it active. Cancellation surfaces as ctx.Err, never as a login
// failure.
func (m *SessionManager) Login(ctx context.Context) (Credential, error) {
	cred, err := m.authenticate(ctx)
	if err != nil {
		return Credential{}, err
	}
	if !cred.Complete() {
		return Credential{}, ErrNoCredential
	}
	if err := m.store.Save(cred); err != nil {
		return Credential{}, err
	}

	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()

	m.logger.Info("login confirmed", slog.String("user_id", cred.DedeUserID))
	return cred, nil
}

// Reauthenticate is Login under a different name for the session-invalid
// interceptor, so call sites read as what they do.
func (m *SessionManager) Reauthenticate(ctx context.Context) (Credential, error) {
	m.logger.Warn("session invalid, starting re-login")
	return m.Login(ctx)
}

// Logout clears the active credential and removes the stored file.
func (m *SessionManager) Logout() error {
	m.mu.Lock()
	m.cred = Credential{}
	m.mu.Unlock()
	return m.store.Clear()
}

// authenticate requests a QR challenge, renders it, and polls until the
// user confirms, the code expires, the budget runs out, or ctx is
// cancelled.
func (m *SessionManager) authenticate(ctx context.Context) (Credential, error) {
	challenge, err := m.requestChallenge(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("request login challenge: %w", err)
	}
	if m.render != nil {
		m.render(challenge.URL)
	}

	deadline := time.Now().Add(m.loginBudget)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return Credential{}, err
		}

		cred, state, err := m.pollChallenge(ctx, challenge.QRCodeKey)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Credential{}, ctx.Err()
			}
			// Transient poll failures only consume wall clock.
			m.logger.Debug("login poll failed, retrying", logging.Error(err))
		case state == codeChallengeExpired:
			return Credential{}, ErrChallengeExpired
		case state == codeChallengeOK:
			return cred, nil
		}

		select {
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
	return Credential{}, fmt.Errorf("login not confirmed within %s", m.loginBudget)
}

func (m *SessionManager) requestChallenge(ctx context.Context) (*qrChallenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.passportURL+qrGeneratePath, nil)
	if err != nil {
		return nil, err
	}
	applyFixedHeaders(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("challenge endpoint returned %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode challenge response: %w", err)
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Message, Endpoint: qrGeneratePath}
	}

	var challenge qrChallenge
	if err := json.Unmarshal(env.Data, &challenge); err != nil {
		return nil, fmt.Errorf("decode challenge payload: %w", err)
	}
	if challenge.URL == "" || challenge.QRCodeKey == "" {
		return nil, fmt.Errorf("%w: challenge missing url or key", ErrMalformedPayload)
	}
	return &challenge, nil
}

// pollChallenge returns the poll state code alongside the credential; the
// credential is only populated when the state is codeChallengeOK.
func (m *SessionManager) pollChallenge(ctx context.Context, key string) (Credential, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.passportURL+qrPollPath+"?qrcode_key="+key, nil)
	if err != nil {
		return Credential{}, 0, err
	}
	applyFixedHeaders(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Credential{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Credential{}, 0, fmt.Errorf("poll endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, 0, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Credential{}, 0, fmt.Errorf("decode poll response: %w", err)
	}
	if env.Code != 0 {
		return Credential{}, 0, &APIError{Code: env.Code, Message: env.Message, Endpoint: qrPollPath}
	}

	var state qrPollData
	if err := json.Unmarshal(env.Data, &state); err != nil {
		return Credential{}, 0, fmt.Errorf("decode poll payload: %w", err)
	}
	if state.Code != codeChallengeOK {
		return Credential{}, state.Code, nil
	}
	return credentialFromCookies(resp.Cookies()), codeChallengeOK, nil
}

func credentialFromCookies(cookies []*http.Cookie) Credential {
	cred := Credential{IssuedAt: time.Now().UTC()}
	for _, cookie := range cookies {
		switch cookie.Name {
		case "SESSDATA":
			cred.SESSDATA = cookie.Value
		case "bili_jct":
			cred.BiliJCT = cookie.Value
		case "DedeUserID":
			cred.DedeUserID = cookie.Value
		}
	}
	return cred
}
