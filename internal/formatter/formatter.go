package formatter

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

const (
	FileSystemFat32 = "fat32"
	FileSystemExt4  = "ext4"
	FileSystemExt2  = "ext2"
	FileSystemSwap  = "linux-swap"
)

// UnknownFilesystemError is returned for a filesystem type that has no
// mkfs command.
type UnknownFilesystemError struct {
	FSType string
}

func (e *UnknownFilesystemError) Error() string {
	return fmt.Sprintf("unknown filesystem type: %s", e.FSType)
}

type Formatter interface {
	Format(device, fsType string) error
}

type linuxFormatter struct {
	runner runner.Runner
	logger logrus.FieldLogger
}

func NewLinuxFormatter(r runner.Runner, logger logrus.FieldLogger) Formatter {
	return linuxFormatter{runner: r, logger: logger}
}

// Command returns the command line that creates fsType on device.
func Command(device, fsType string) ([]string, error) {
	switch fsType {
	case FileSystemFat32:
		return []string{"mkfs.fat", "-F", "32", device}, nil
	case FileSystemExt4:
		return []string{"mkfs.ext4", "-F", device}, nil
	case FileSystemExt2:
		return []string{"mkfs.ext2", device}, nil
	case FileSystemSwap:
		return []string{"mkswap", device}, nil
	}
	return nil, &UnknownFilesystemError{FSType: fsType}
}

func (f linuxFormatter) Format(device, fsType string) error {
	cmd, err := Command(device, fsType)
	if err != nil {
		return err
	}

	f.logger.Infof("creating %s filesystem on %s", fsType, device)
	if _, err := f.runner.Run(cmd[0], cmd[1:]...); err != nil {
		return fmt.Errorf("failed to create %s filesystem on %s: %w", fsType, device, err)
	}
	return nil
}
