package bili

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Credential holds the session cookies issued by a confirmed QR login.
type Credential struct {
	SESSDATA   string    `toml:"sessdata"`
	BiliJCT    string    `toml:"bili_jct"`
	DedeUserID string    `toml:"dede_user_id"`
	IssuedAt   time.Time `toml:"issued_at"`
}

// Complete reports whether every required session field is present.
func (c Credential) Complete() bool {
	return strings.TrimSpace(c.SESSDATA) != "" &&
		strings.TrimSpace(c.BiliJCT) != "" &&
		strings.TrimSpace(c.DedeUserID) != ""
}

// CookieHeader renders the credential as a Cookie request header value.
func (c Credential) CookieHeader() string {
	return fmt.Sprintf("SESSDATA=%s; bili_jct=%s; DedeUserID=%s", c.SESSDATA, c.BiliJCT, c.DedeUserID)
}

// CredentialStore abstracts persistence for the session credential.
type CredentialStore interface {
	Load() (Credential, error)
	Save(Credential) error
	Clear() error
}

// FileCredentialStore keeps the credential in a TOML file on disk.
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore builds a FileCredentialStore rooted at the
// provided path.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Load reads the credential from disk. A missing file resolves to an empty
// credential. An unparseable file is removed and reported as
// ErrCorruptCredential so callers can log the cleanup and continue as
// logged out.
func (s *FileCredentialStore) Load() (Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("read credential file: %w", err)
	}

	var cred Credential
	if err := toml.Unmarshal(data, &cred); err != nil {
		_ = os.Remove(s.path)
		return Credential{}, fmt.Errorf("%w: %s", ErrCorruptCredential, s.path)
	}
	return cred, nil
}

// Save persists the credential with restricted permissions.
func (s *FileCredentialStore) Save(cred Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure credential directory: %w", err)
	}

	data, err := toml.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// Clear removes the credential file. A missing file is not an error.
func (s *FileCredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
