package backend

import (
	"os"
	"path/filepath"
)

type Config struct {
	Dir  string
	Sync bool
}

func (c *Config) MakeDirAll() error {
	return os.MkdirAll(c.Dir, 0755)
}

func (c *Config) GetMainDir() string {
	return filepath.Join(c.Dir, "flake")
}

func (c *Config) GetLockFilePath() string {
	return filepath.Join(c.Dir, "LOCK")
}

func (c *Config) GetSync() bool {
	if c == nil {
		return true
	}
	return c.Sync
}
