package partition

import (
	"fmt"
	"path/filepath"

	"github.com/larsks/diskimg/internal/size"
)

// Collection is the ordered, read-only result of Build.
type Collection struct {
	format     Format
	partitions []Partition
}

func (c *Collection) Format() Format {
	return c.format
}

func (c *Collection) Len() int {
	return len(c.partitions)
}

// Partitions returns a copy of the partitions in table order.
func (c *Collection) Partitions() []Partition {
	out := make([]Partition, len(c.partitions))
	copy(out, c.partitions)
	return out
}

// Scripts returns the parted script fragments in table order.
func (c *Collection) Scripts() []string {
	scripts := make([]string, 0, len(c.partitions))
	for _, p := range c.partitions {
		scripts = append(scripts, p.script)
	}
	return scripts
}

func (c *Collection) FSTypes() []string {
	types := make([]string, 0, len(c.partitions))
	for _, p := range c.partitions {
		types = append(types, p.fsType)
	}
	return types
}

// TotalSize returns the size of the image in bytes. In long format it comes
// from "-- dd <size>" on the first partition; in short format it is the end
// offset written on the last partition's filename, not the 100% used in its
// script.
func (c *Collection) TotalSize() (int64, error) {
	if len(c.partitions) == 0 {
		return 0, &size.ParseError{Reason: "no partitions"}
	}

	switch c.format {
	case FormatLong:
		first := c.partitions[0]
		if first.diskSize == "" {
			return 0, &size.ParseError{Reason: fmt.Sprintf("%s does not define the image size with \"-- dd <size>\"", filepath.Base(first.filename))}
		}
		return size.ParseBytes(first.diskSize)
	case FormatShort:
		return size.ParseBytes(c.partitions[len(c.partitions)-1].declaredEnd)
	}
	return 0, &size.ParseError{Reason: "unknown partition format"}
}
