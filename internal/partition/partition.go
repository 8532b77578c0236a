// Package partition turns a directory of partition source files into an
// ordered partition table description. Two filename conventions are
// understood:
//
// Short format, where the builder synthesizes the parted geometry:
//
//	partition01_8MiB_fat32
//	partition02_16GiB_ext4.tar.gz
//
// Long format, where the filename carries a literal parted script:
//
//	partition01 -- dd 256MiB -- parted mklabel msdos mkpart primary fat32 1 8MiB
//	partition02 -- parted mkpart primary ext4 8MiB 100%
package partition

import (
	"os"
	"strings"
)

// Format identifies which filename convention a partition set uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatLong
	FormatShort
)

func (f Format) String() string {
	switch f {
	case FormatLong:
		return "long"
	case FormatShort:
		return "short"
	default:
		return "unknown"
	}
}

// Source is the kind of content a partition file provides.
type Source int

const (
	SourceUnknown Source = iota
	SourceDirectory
	SourceTar
	SourceTarGzip
)

func (s Source) String() string {
	switch s {
	case SourceDirectory:
		return "directory"
	case SourceTar:
		return "tar"
	case SourceTarGzip:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// FSTypeSwap is the filesystem type of partitions that are formatted but
// never mounted.
const FSTypeSwap = "linux-swap"

// Partition describes one partition of the image: where its content comes
// from, the parted script fragment that creates it and its filesystem type.
type Partition struct {
	filename    string
	index       int
	script      string
	fsType      string
	declaredEnd string
	diskSize    string
}

// Filename is the path of the source directory or archive.
func (p Partition) Filename() string { return p.filename }

// Index is the number parsed from the partitionNN part of the filename.
func (p Partition) Index() int { return p.index }

// Script is the parted script fragment for this partition.
func (p Partition) Script() string { return p.script }

func (p Partition) FSType() string { return p.fsType }

// DeclaredEnd is the end offset written in a short format filename. For the
// last partition this differs from the script, which always ends at 100%.
// It is empty for long format partitions.
func (p Partition) DeclaredEnd() string { return p.declaredEnd }

// Mountable reports whether the partition gets a filesystem that can be
// mounted and populated.
func (p Partition) Mountable() bool {
	return p.fsType != FSTypeSwap
}

// Source inspects the filename to decide how the content is copied.
func (p Partition) Source() Source {
	if info, err := os.Stat(p.filename); err == nil && info.IsDir() {
		return SourceDirectory
	}
	switch {
	case strings.HasSuffix(p.filename, ".tar"):
		return SourceTar
	case strings.HasSuffix(p.filename, ".tar.gz"):
		return SourceTarGzip
	}
	return SourceUnknown
}
