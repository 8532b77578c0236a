// Package image allocates and partitions disk image files.
package image

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

var ErrImageExists = errors.New("image file already exists")

// ExistsError is returned by MakeEmpty when the image file is present and
// overwriting was not requested.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("image file '%s' already exists", e.Path)
}

func (e *ExistsError) Unwrap() error {
	return ErrImageExists
}

// Extent is a partition as recorded in the image's partition table.
type Extent struct {
	Index int
	Start int64
	Size  int64
}

// Layout is the partition table read back from an image.
type Layout struct {
	TableType  string
	Partitions []Extent
}

type Image struct {
	path   string
	runner runner.Runner
	logger logrus.FieldLogger
}

func New(path string, r runner.Runner, logger logrus.FieldLogger) *Image {
	return &Image{path: path, runner: r, logger: logger}
}

func (img *Image) Path() string {
	return img.path
}

// MakeEmpty allocates a sparse file of size bytes.
func (img *Image) MakeEmpty(size int64, overwrite bool) error {
	if _, err := os.Stat(img.path); err == nil {
		if !overwrite {
			return &ExistsError{Path: img.path}
		}
		img.logger.Infof("removing existing image %s", img.path)
		if err := os.Remove(img.path); err != nil {
			return fmt.Errorf("failed to remove existing image %s: %w", img.path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check image %s: %w", img.path, err)
	}

	img.logger.Infof("allocating %s (%d bytes) for %s", humanize.IBytes(uint64(size)), size, img.path)
	d, err := diskfs.Create(img.path, size, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("failed to allocate image %s: %w", img.path, err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("failed to close image %s: %w", img.path, err)
	}
	return nil
}

// Partition runs the parted script fragments against the image in a single
// parted invocation.
func (img *Image) Partition(fragments []string) error {
	img.logger.Infof("executing parted script:\n%s", strings.Join(fragments, "\n"))

	args := append([]string{"--script", img.path, "--"}, fragments...)
	args = append(args, "print")
	out, err := img.runner.Run("parted", args...)
	if err != nil {
		return fmt.Errorf("failed to partition %s: %w", img.path, err)
	}
	img.logger.Debug(out)
	return nil
}

// Inspect reads the partition table of the image. Empty table slots are
// omitted.
func (img *Image) Inspect() (*Layout, error) {
	d, err := diskfs.Open(img.path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", img.path, err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read partition table of %s: %w", img.path, err)
	}

	layout := &Layout{TableType: table.Type()}
	for i, p := range table.GetPartitions() {
		if p == nil || p.GetSize() == 0 {
			continue
		}
		layout.Partitions = append(layout.Partitions, Extent{
			Index: i + 1,
			Start: p.GetStart(),
			Size:  p.GetSize(),
		})
	}

	for _, ext := range layout.Partitions {
		img.logger.Debugf("%s partition %d: start %d, size %s",
			layout.TableType, ext.Index, ext.Start, humanize.IBytes(uint64(ext.Size)))
	}
	return layout, nil
}
