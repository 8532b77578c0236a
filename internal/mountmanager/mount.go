package mountmanager

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

// Mount mounts source on target, creating target if needed. The returned
// Release unmounts target and removes it.
func Mount(r runner.Runner, logger logrus.FieldLogger, source, target string) (Release, error) {
	created := false
	if info, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(target, 0755); err != nil {
			return nil, fmt.Errorf("failed to create mount point %s: %w", target, err)
		}
		created = true
	} else if err != nil {
		return nil, fmt.Errorf("failed to check mount point %s: %w", target, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("mount point %s is not a directory", target)
	}

	if _, err := r.Run("mount", source, target); err != nil {
		if created {
			os.Remove(target)
		}
		return nil, fmt.Errorf("failed to mount %s to %s: %w", source, target, err)
	}
	logger.Infof("mounted %s to %s", source, target)

	return func() error {
		if _, err := r.Run("umount", target); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", target, err)
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to remove directory %s: %w", target, err)
		}
		logger.Infof("unmounted %s", target)
		return nil
	}, nil
}
