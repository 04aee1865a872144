package profile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/matst80/hookcast/internal/proto"
)

// Profile names one relay to connect to and where to forward locally.
type Profile struct {
	Remote string `json:"remote"`
	Secret string `json:"secret"`
	Local  string `json:"local"`
}

// Prepare validates the profile and returns normalized remote/local URLs.
// http(s) remotes are accepted and converted to ws(s).
func (p Profile) Prepare() (remote, local *url.URL, err error) {
	remote, err = url.Parse(p.Remote)
	if err != nil {
		return nil, nil, fmt.Errorf("remote: %w", err)
	}
	switch remote.Scheme {
	case "ws", "wss":
	case "http":
		remote.Scheme = "ws"
	case "https":
		remote.Scheme = "wss"
	default:
		return nil, nil, fmt.Errorf("remote must use ws or wss scheme, got %q", remote.Scheme)
	}
	remote.Path = proto.TunnelPath
	remote.RawQuery = ""

	local, err = url.Parse(p.Local)
	if err != nil {
		return nil, nil, fmt.Errorf("local: %w", err)
	}
	if local.Scheme != "http" && local.Scheme != "https" {
		return nil, nil, fmt.Errorf("local must use http or https scheme, got %q", local.Scheme)
	}
	local.Path = "/"
	local.RawQuery = ""
	return remote, local, nil
}

// Profiles is the named profile collection stored at path.
type Profiles struct {
	path string
	all  map[string]Profile
}

// DefaultPath returns ~/.hookcast/profiles.json, creating the directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".hookcast")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.json"), nil
}

// Load reads the profile file; a missing file is an empty collection.
func Load(path string) (*Profiles, error) {
	p := &Profiles{path: path, all: make(map[string]Profile)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &p.all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func (p *Profiles) save() error {
	data, err := json.MarshalIndent(p.all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

// Get returns the named profile.
func (p *Profiles) Get(name string) (Profile, bool) {
	prof, ok := p.all[name]
	return prof, ok
}

// All returns the full name -> profile map.
func (p *Profiles) All() map[string]Profile { return p.all }

// Add stores a new profile; an existing name is an error.
func (p *Profiles) Add(name string, prof Profile) error {
	if _, exists := p.all[name]; exists {
		return fmt.Errorf("profile %s already exists", name)
	}
	if _, _, err := prof.Prepare(); err != nil {
		return err
	}
	p.all[name] = prof
	return p.save()
}

// Delete removes a profile; a missing name is an error.
func (p *Profiles) Delete(name string) error {
	if _, exists := p.all[name]; !exists {
		return fmt.Errorf("profile %s doesn't exist", name)
	}
	delete(p.all, name)
	return p.save()
}
