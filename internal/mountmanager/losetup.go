package mountmanager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

const (
	defaultLoopDevice = "/dev/loop0"
	noLoopDevice      = "cannot find an unused loop device: No such device"
)

// losetupBackend attaches images with loop devices. When the system has no
// loop device nodes at all, /dev/loop0 is created; it is left in place on
// detach.
type losetupBackend struct {
	runner     runner.Runner
	logger     logrus.FieldLogger
	loopDevice string
	mknod      func(path string) error
	device     string
}

func newLosetupBackend(r runner.Runner, logger logrus.FieldLogger) *losetupBackend {
	return &losetupBackend{
		runner:     r,
		logger:     logger,
		loopDevice: defaultLoopDevice,
		mknod:      makeLoopDevice,
	}
}

func (b *losetupBackend) Name() string {
	return "losetup"
}

func (b *losetupBackend) findDevice() (string, error) {
	out, err := b.runner.Run("losetup", "-f")
	if err == nil {
		return strings.TrimSpace(out), nil
	}

	var cerr *runner.CommandError
	if !errors.As(err, &cerr) || !strings.Contains(cerr.Stderr, noLoopDevice) {
		return "", fmt.Errorf("failed to find a free loop device: %w", err)
	}

	b.logger.Infof("no loop devices available, creating %s", b.loopDevice)
	if err := b.mknod(b.loopDevice); err != nil {
		return "", fmt.Errorf("failed to create loop device %s: %w", b.loopDevice, err)
	}
	return b.loopDevice, nil
}

func (b *losetupBackend) Attach(image string) ([]string, error) {
	device, err := b.findDevice()
	if err != nil {
		return nil, err
	}

	if _, err := b.runner.Run("losetup", "-P", device, image); err != nil {
		return nil, fmt.Errorf("failed to attach %s to %s: %w", image, device, err)
	}
	b.device = device
	b.logger.Infof("attached %s to %s", image, device)

	parts, err := globPartitions(device + "p")
	if err != nil {
		err = fmt.Errorf("failed to list partitions of %s: %w", device, err)
		return nil, errors.Join(err, b.Detach())
	}
	return parts, nil
}

func (b *losetupBackend) Detach() error {
	if b.device == "" {
		return nil
	}
	if _, err := b.runner.Run("losetup", "-d", b.device); err != nil {
		return fmt.Errorf("failed to free loop device %s: %w", b.device, err)
	}
	b.logger.Infof("freed loop device %s", b.device)
	b.device = ""
	return nil
}
