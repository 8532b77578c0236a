package mountmanager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

// partfsBackend exposes partitions as files through the partfs FUSE
// filesystem. It works without loop devices, e.g. in containers.
type partfsBackend struct {
	runner  runner.Runner
	logger  logrus.FieldLogger
	dir     string
	mounted bool
}

func defaultPartfsMountDir() string {
	return "/mnt/_tmp_partfs" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func newPartfsBackend(dir string, r runner.Runner, logger logrus.FieldLogger) *partfsBackend {
	if dir == "" {
		dir = defaultPartfsMountDir()
	}
	return &partfsBackend{runner: r, logger: logger, dir: dir}
}

func (b *partfsBackend) Name() string {
	return "partfs"
}

func (b *partfsBackend) MountDir() string {
	return b.dir
}

func (b *partfsBackend) Attach(image string) ([]string, error) {
	created := false
	entries, err := os.ReadDir(b.dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.Mkdir(b.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create partfs mount directory %s: %w", b.dir, err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("failed to read partfs mount directory %s: %w", b.dir, err)
	case len(entries) > 0:
		return nil, &MountInUseError{Dir: b.dir}
	}

	if _, err := b.runner.Run("partfs", "-o", "dev="+image, b.dir); err != nil {
		if created {
			os.Remove(b.dir)
		}
		return nil, fmt.Errorf("failed to mount %s with partfs: %w", image, err)
	}
	b.mounted = true
	b.logger.Infof("partfs %s mounted", b.dir)

	parts, err := globPartitions(filepath.Join(b.dir, "p"))
	if err != nil {
		err = fmt.Errorf("failed to list partitions in %s: %w", b.dir, err)
		return nil, errors.Join(err, b.Detach())
	}
	return parts, nil
}

func (b *partfsBackend) Detach() error {
	if !b.mounted {
		return nil
	}
	if _, err := b.runner.Run("fusermount", "-u", b.dir); err != nil {
		return fmt.Errorf("failed to unmount partfs %s: %w", b.dir, err)
	}
	b.mounted = false
	if err := os.Remove(b.dir); err != nil {
		return fmt.Errorf("failed to remove partfs mount directory %s: %w", b.dir, err)
	}
	b.logger.Infof("partfs %s unmounted", b.dir)
	return nil
}
