package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the deepdub directory structure
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		HomeDir: home,
	}, nil
}

// BaseDir returns the base deepdub directory (~/.deepdub)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.deepdub/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// CacheDir returns the cache directory (~/.deepdub/cache)
func (p *Paths) CacheDir() string {
	return filepath.Join(p.BaseDir(), "cache")
}

// AudioDir returns the audio output directory (~/.deepdub/audio)
func (p *Paths) AudioDir() string {
	return filepath.Join(p.BaseDir(), "audio")
}

// EnsureBaseDir creates the base directory if it doesn't exist
func (p *Paths) EnsureBaseDir() error {
	return os.MkdirAll(p.BaseDir(), 0755)
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func (p *Paths) EnsureCacheDir() error {
	return os.MkdirAll(p.CacheDir(), 0755)
}

// EnsureAudioDir creates the audio directory if it doesn't exist
func (p *Paths) EnsureAudioDir() error {
	return os.MkdirAll(p.AudioDir(), 0755)
}

// CachePath returns a path within the cache directory
func (p *Paths) CachePath(name string) string {
	return filepath.Join(p.CacheDir(), name)
}

// AudioPath returns a path within the audio directory
func (p *Paths) AudioPath(name string) string {
	return filepath.Join(p.AudioDir(), name)
}
