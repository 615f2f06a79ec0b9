// MCPDesk - Desktop chat client for MCP tool servers
// License: MIT

package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clatonhendricks/MCPDeskClient/pkg/utils"
)

// Credential is a durable per-provider token. For GitHub Copilot this is
// the OAuth access token from the device flow; session tokens are never
// persisted.
type Credential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Provider    string    `json:"provider"`
	AuthMethod  string    `json:"auth_method"`
}

func (c *Credential) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

// Store persists credentials as a JSON file with owner-only permissions.
type Store struct {
	mu   sync.Mutex
	path string
}

type storeFile struct {
	Credentials map[string]*Credential `json:"credentials"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStorePath returns ~/.mcpdesk/auth.json.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mcpdesk", "auth.json")
}

func (s *Store) load() (*storeFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &storeFile{Credentials: make(map[string]*Credential)}, nil
		}
		return nil, err
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Credentials == nil {
		f.Credentials = make(map[string]*Credential)
	}
	return &f, nil
}

func (s *Store) save(f *storeFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(s.path, data, 0o600)
}

func (s *Store) Get(provider string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}
	return f.Credentials[provider], nil
}

func (s *Store) Set(provider string, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	f.Credentials[provider] = cred
	return s.save(f)
}

func (s *Store) Delete(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	delete(f.Credentials, provider)
	return s.save(f)
}

func (s *Store) Providers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.Credentials))
	for p := range f.Credentials {
		out = append(out, p)
	}
	return out, nil
}
