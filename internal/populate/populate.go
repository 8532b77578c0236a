// Package populate copies partition contents into a mounted filesystem.
package populate

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/larsks/diskimg/internal/partition"
	"github.com/larsks/diskimg/internal/runner"
)

type Populator struct {
	runner runner.Runner
	logger logrus.FieldLogger
}

func New(r runner.Runner, logger logrus.FieldLogger) *Populator {
	return &Populator{runner: r, logger: logger}
}

// Populate fills dst with the contents of the partition's source: the
// contents of a directory, or the members of a tar archive.
func (p *Populator) Populate(part partition.Partition, dst string) error {
	src := part.Filename()

	switch part.Source() {
	case partition.SourceDirectory:
		p.logger.Infof("copying files from '%s' to '%s'", src, dst)
		if _, err := p.runner.Run("cp", "-rp", src+string(os.PathSeparator)+".", dst); err != nil {
			return fmt.Errorf("failed to copy files from %s: %w", src, err)
		}
	case partition.SourceTar:
		p.logger.Infof("extracting '%s' to '%s'", src, dst)
		if err := ExtractFile(src, dst, false, p.logger); err != nil {
			return fmt.Errorf("failed to extract %s: %w", src, err)
		}
	case partition.SourceTarGzip:
		p.logger.Infof("extracting gzip compressed '%s' to '%s'", src, dst)
		if err := ExtractFile(src, dst, true, p.logger); err != nil {
			return fmt.Errorf("failed to extract %s: %w", src, err)
		}
	default:
		p.logger.Warnf("nothing to copy from '%s'", src)
	}
	return nil
}
