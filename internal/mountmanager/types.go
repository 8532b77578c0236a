package mountmanager

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/runner"
)

// Release undoes an acquisition such as an attached image or a mount.
type Release func() error

// MountInUseError is returned when the partfs mount directory already has
// contents.
type MountInUseError struct {
	Dir string
}

func (e *MountInUseError) Error() string {
	return fmt.Sprintf("partfs mount directory %s is in use", e.Dir)
}

type BackendOptions struct {
	// PartfsMountDir is where partfs exposes partitions. A unique
	// directory under /mnt is used when empty.
	PartfsMountDir string

	// NBDDevice is the nbd device to connect; a free one is found when
	// empty.
	NBDDevice string

	// NBDFormat is passed to qemu-nbd as --format when set.
	NBDFormat string
}

type SfdiskPartition struct {
	Node  string `json:"node"`
	Start int    `json:"start"`
	Size  int    `json:"size"`
	Type  string `json:"type"`
}

type SfdiskPartitionTable struct {
	Label      string            `json:"label"`
	ID         string            `json:"id"`
	Device     string            `json:"device"`
	Unit       string            `json:"unit"`
	SectorSize int               `json:"sectorsize"`
	Partitions []SfdiskPartition `json:"partitions"`
}

type SfdiskOutput struct {
	PartitionTable SfdiskPartitionTable `json:"partitiontable"`
}

type MountManager struct {
	image     string
	mountRoot string
	backend   Backend
	runner    runner.Runner
	logger    logrus.FieldLogger
	stack     *Stack
	mounted   []string
}
