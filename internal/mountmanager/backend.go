package mountmanager

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

// Backend exposes the partitions of an image file as block devices
type Backend interface {
	// Name returns the backend name
	Name() string

	// Attach makes the partitions of image available and returns their
	// device paths in partition order
	Attach(image string) ([]string, error)

	// Detach undoes Attach
	Detach() error
}

// NewBackend creates an attach backend by name
func NewBackend(name string, opts BackendOptions, r runner.Runner, logger logrus.FieldLogger) (Backend, error) {
	switch name {
	case "losetup":
		return newLosetupBackend(r, logger), nil
	case "partfs":
		return newPartfsBackend(opts.PartfsMountDir, r, logger), nil
	case "nbd":
		return newNBDBackend(opts.NBDDevice, opts.NBDFormat, r, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (valid options: losetup, partfs, nbd)", name)
	}
}

// globPartitions returns the paths matching prefix followed by a partition
// number, ordered by that number.
func globPartitions(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "[0-9]*")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, m := range matches {
		if _, err := strconv.Atoi(m[len(prefix):]); err == nil {
			paths = append(paths, m)
		}
	}
	sortByPartitionNumber(paths)
	return paths, nil
}

func sortByPartitionNumber(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return partitionNumber(paths[i]) < partitionNumber(paths[j])
	})
}

// partitionNumber returns the trailing decimal number of path, or -1.
func partitionNumber(path string) int {
	i := len(path)
	for i > 0 && path[i-1] >= '0' && path[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(path[i:])
	if err != nil {
		return -1
	}
	return n
}
