// Package creator builds a disk image from a directory of partition
// sources.
package creator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/formatter"
	"github.com/larsks/diskimg/internal/image"
	"github.com/larsks/diskimg/internal/mountmanager"
	"github.com/larsks/diskimg/internal/partition"
	"github.com/larsks/diskimg/internal/populate"
	"github.com/larsks/diskimg/internal/runner"
)

type Creator struct {
	runner    runner.Runner
	backend   mountmanager.Backend
	formatter formatter.Formatter
	populator *populate.Populator
	tempFSDir string
	logger    logrus.FieldLogger
}

// New returns a Creator that attaches images with backend and mounts each
// partition at tempFSDir while copying its contents.
func New(r runner.Runner, backend mountmanager.Backend, tempFSDir string, logger logrus.FieldLogger) *Creator {
	return &Creator{
		runner:    r,
		backend:   backend,
		formatter: formatter.NewLinuxFormatter(r, logger),
		populator: populate.New(r, logger),
		tempFSDir: tempFSDir,
		logger:    logger,
	}
}

// Create writes imagePath from the partition sources in partitionsDir. On
// failure everything attached or mounted so far is released; a partially
// written image file is left in place.
func (c *Creator) Create(partitionsDir, imagePath string, overwrite bool) (err error) {
	c.logger.Infof("partitions directory: %s", partitionsDir)
	c.logger.Infof("image file to create: %s", imagePath)

	collection, err := partition.FromDirectory(partitionsDir, partition.WithLogger(c.logger))
	if err != nil {
		return err
	}

	total, err := collection.TotalSize()
	if err != nil {
		return err
	}
	c.logger.Infof("image size: %s", humanize.IBytes(uint64(total)))

	img := image.New(imagePath, c.runner, c.logger)
	if err := img.MakeEmpty(total, overwrite); err != nil {
		return err
	}
	if err := img.Partition(collection.Scripts()); err != nil {
		return err
	}
	c.checkLayout(img, collection.Len())

	stack := mountmanager.NewStack(c.logger)
	defer func() {
		err = errors.Join(err, stack.Close())
	}()

	devices, err := c.backend.Attach(imagePath)
	if err != nil {
		return err
	}
	stack.Push(c.backend.Name()+" "+imagePath, c.backend.Detach)

	if len(devices) != collection.Len() {
		c.logger.Warnf("%d partitions described but %d attached", collection.Len(), len(devices))
	}

	if err := os.MkdirAll(filepath.Dir(c.tempFSDir), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(c.tempFSDir), err)
	}

	for i, part := range collection.Partitions() {
		if i >= len(devices) {
			break
		}
		if err := c.fill(stack, part, devices[i]); err != nil {
			return err
		}
	}

	c.logger.Infof("created %s", imagePath)
	return nil
}

// fill formats device and, unless the filesystem cannot be mounted, copies
// the partition's contents onto it.
func (c *Creator) fill(stack *mountmanager.Stack, part partition.Partition, device string) error {
	if err := c.formatter.Format(device, part.FSType()); err != nil {
		return err
	}
	if !part.Mountable() {
		return nil
	}

	release, err := mountmanager.Mount(c.runner, c.logger, device, c.tempFSDir)
	if err != nil {
		return err
	}
	stack.Push(c.tempFSDir, release)

	if err := c.populator.Populate(part, c.tempFSDir); err != nil {
		return err
	}
	return stack.Pop()
}

func (c *Creator) checkLayout(img *image.Image, want int) {
	layout, err := img.Inspect()
	if err != nil {
		c.logger.WithError(err).Warn("unable to read back partition table")
		return
	}
	if len(layout.Partitions) != want {
		c.logger.Warnf("%s partition table has %d partitions, expected %d",
			layout.TableType, len(layout.Partitions), want)
	}
}
