package mountmanager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

func NewMountManager(image, mountRoot string, backend Backend, r runner.Runner, logger logrus.FieldLogger) *MountManager {
	return &MountManager{
		image:     image,
		mountRoot: mountRoot,
		backend:   backend,
		runner:    r,
		logger:    logger,
		stack:     NewStack(logger),
	}
}

func (mm *MountManager) isImageFile() bool {
	info, err := os.Stat(mm.image)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// MountRoot is the directory that holds the partition mount points.
func (mm *MountManager) MountRoot() string {
	return mm.mountRoot
}

// Mounted returns the mount points created by Mount.
func (mm *MountManager) Mounted() []string {
	return append([]string(nil), mm.mounted...)
}

func (mm *MountManager) partitionDir(number int) string {
	return filepath.Join(mm.mountRoot, fmt.Sprintf("p%d", number))
}

// Mount attaches the image and mounts the given 1-based partition numbers
// as p<N> below the mount root. No numbers means every partition. If
// anything fails, whatever was already set up is released.
func (mm *MountManager) Mount(numbers []int) (err error) {
	if !mm.isImageFile() {
		return fmt.Errorf("%s is not an image file", mm.image)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, mm.Unmount())
		}
	}()

	if err := os.MkdirAll(mm.mountRoot, 0755); err != nil {
		return fmt.Errorf("failed to create mount root %s: %w", mm.mountRoot, err)
	}

	partitions, err := mm.backend.Attach(mm.image)
	if err != nil {
		return err
	}
	mm.stack.Push(mm.backend.Name()+" "+mm.image, mm.backend.Detach)

	if len(partitions) == 0 {
		mm.logger.Warnf("no partitions found on %s", mm.image)
		return nil
	}

	if len(numbers) == 0 {
		for i := range partitions {
			numbers = append(numbers, i+1)
		}
	}

	seen := map[int]bool{}
	for _, number := range numbers {
		if number < 1 || number > len(partitions) {
			mm.logger.Warnf("skipping partition %d: %s has %d partitions", number, mm.image, len(partitions))
			continue
		}
		if seen[number] {
			continue
		}
		seen[number] = true

		target := mm.partitionDir(number)
		release, err := Mount(mm.runner, mm.logger, partitions[number-1], target)
		if err != nil {
			return err
		}
		mm.stack.Push(target, release)
		mm.mounted = append(mm.mounted, target)
	}

	return nil
}

// Unmount releases the mounts and the attached image in reverse order.
func (mm *MountManager) Unmount() error {
	mm.mounted = nil
	return mm.stack.Close()
}
