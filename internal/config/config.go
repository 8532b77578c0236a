// Package config loads the optional YAML configuration shared by
// diskimgcreator and diskimgmounter. Command line flags override values read
// from the file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	BackendLosetup = "losetup"
	BackendPartfs  = "partfs"
	BackendNBD     = "nbd"
)

type Config struct {
	Verbose bool `yaml:"verbose"`

	// Backend selects how images are attached: losetup, partfs or nbd.
	Backend string `yaml:"backend"`

	// PartfsMountDir is where the partfs backend exposes partitions. A
	// unique directory under /mnt is used when empty.
	PartfsMountDir string `yaml:"partfs_mount_dir"`

	// MountRootDir is where diskimgmounter mounts partitions as p1, p2...
	MountRootDir string `yaml:"mount_root_dir"`

	// TempFSDir is where diskimgcreator mounts each partition while it is
	// populated.
	TempFSDir string `yaml:"temp_fs_dir"`

	NBDDevice string `yaml:"nbd_device"`
	NBDFormat string `yaml:"nbd_format"`
}

func Default() *Config {
	return &Config{
		Backend:      BackendLosetup,
		MountRootDir: "/mnt",
		TempFSDir:    "/mnt/_temp_fs",
	}
}

// Load reads path over the defaults. A missing file is an error only when
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLosetup, BackendPartfs, BackendNBD:
	default:
		return fmt.Errorf("unknown backend: %s (valid options: %s, %s, %s)",
			c.Backend, BackendLosetup, BackendPartfs, BackendNBD)
	}
	if c.MountRootDir == "" {
		return errors.New("mount_root_dir must not be empty")
	}
	if c.TempFSDir == "" {
		return errors.New("temp_fs_dir must not be empty")
	}
	return nil
}
