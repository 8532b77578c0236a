package mountmanager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

// nbdBackend attaches images through qemu-nbd, which also handles non-raw
// image formats.
type nbdBackend struct {
	runner         runner.Runner
	logger         logrus.FieldLogger
	format         string
	deviceExplicit string
	devDir         string
	sysDir         string
	device         string
}

func newNBDBackend(device, format string, r runner.Runner, logger logrus.FieldLogger) *nbdBackend {
	return &nbdBackend{
		runner:         r,
		logger:         logger,
		format:         format,
		deviceExplicit: device,
		devDir:         "/dev",
		sysDir:         "/sys/class/block",
	}
}

func (b *nbdBackend) Name() string {
	return "nbd"
}

func (b *nbdBackend) findFreeDevice() (string, error) {
	i := 0
	for {
		name := fmt.Sprintf("nbd%d", i)
		devicePath := filepath.Join(b.devDir, name)
		i++

		// If the device node does not exist, assume we have reached the end
		// of available nbd devices.
		if _, err := os.Stat(devicePath); os.IsNotExist(err) {
			break
		}

		// A pid file means the device is in use
		if _, err := os.Stat(filepath.Join(b.sysDir, name, "pid")); err == nil {
			continue
		}

		return devicePath, nil
	}

	return "", fmt.Errorf("no free NBD devices found (checked %s through %s)",
		filepath.Join(b.devDir, "nbd0"), filepath.Join(b.devDir, fmt.Sprintf("nbd%d", i-1)))
}

func (b *nbdBackend) Attach(image string) ([]string, error) {
	device := b.deviceExplicit
	if device != "" {
		b.logger.Debugf("using explicitly specified NBD device: %s", device)
	} else {
		var err error
		if device, err = b.findFreeDevice(); err != nil {
			return nil, fmt.Errorf("failed to find free NBD device: %w", err)
		}
		b.logger.Debugf("using discovered NBD device: %s", device)
	}

	args := []string{"--connect=" + device}
	if b.format != "" {
		args = append(args, "--format="+b.format)
	}
	args = append(args, image)

	if _, err := b.runner.Run("qemu-nbd", args...); err != nil {
		return nil, fmt.Errorf("failed to attach image with qemu-nbd: %w", err)
	}
	b.device = device
	b.logger.Infof("attached %s to %s", image, device)

	parts, err := b.discoverPartitions()
	if err != nil {
		return nil, errors.Join(err, b.Detach())
	}
	return parts, nil
}

// discoverPartitions lists the partition nodes of the connected device from
// sfdisk's JSON output.
func (b *nbdBackend) discoverPartitions() ([]string, error) {
	out, err := b.runner.Run("sfdisk", "-J", b.device)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var sfdiskData SfdiskOutput
	if err := json.Unmarshal([]byte(out), &sfdiskData); err != nil {
		return nil, fmt.Errorf("failed to parse sfdisk output: %w", err)
	}

	var parts []string
	for _, part := range sfdiskData.PartitionTable.Partitions {
		parts = append(parts, part.Node)
	}
	sortByPartitionNumber(parts)

	b.logger.Debugf("discovered %d partitions on %s", len(parts), b.device)
	return parts, nil
}

func (b *nbdBackend) Detach() error {
	if b.device == "" {
		return nil
	}
	if _, err := b.runner.Run("qemu-nbd", "--disconnect", b.device); err != nil {
		return fmt.Errorf("failed to disconnect NBD device %s: %w", b.device, err)
	}
	b.logger.Infof("disconnected NBD device %s", b.device)
	b.device = ""
	return nil
}
