package partition

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

const (
	// FirstPartitionStart is where the first short format partition begins.
	FirstPartitionStart = "1MiB"

	lastPartitionEnd = "100%"

	// Glob applied to directory entries when collecting partition sources.
	filePattern = "partition[0-9][0-9]?*"
)

type options struct {
	logger logrus.FieldLogger
}

// Option configures Build and FromDirectory.
type Option func(*options)

// WithLogger sets where progress notices are written. By default they are
// discarded.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts ...Option) *options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	o := &options{logger: discard}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FromDirectory collects the partitionNN entries of dir in lexical order and
// builds a Collection from them.
func FromDirectory(dir string, opts ...Option) (*Collection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read partitions directory: %w", err)
	}

	var filenames []string
	for _, entry := range entries {
		if ok, _ := filepath.Match(filePattern, entry.Name()); ok {
			filenames = append(filenames, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(filenames)

	return Build(filenames, opts...)
}

// Build parses filenames, which must already be sorted, into a Collection.
// The first file decides the format; every other file must follow it.
func Build(filenames []string, opts ...Option) (*Collection, error) {
	o := newOptions(opts...)

	if len(filenames) == 0 {
		return nil, ErrNoPartitions
	}

	var (
		partitions []Partition
		err        error
	)

	format := detectFormat(filepath.Base(filenames[0]))
	switch format {
	case FormatLong:
		partitions, err = buildLong(filenames)
	case FormatShort:
		partitions, err = buildShort(filenames)
	default:
		return nil, fmt.Errorf("%w: %s matches neither the short nor the long format", ErrNoPartitions, filenames[0])
	}
	if err != nil {
		return nil, err
	}

	o.logger.Infof("found %d partitions in %s format", len(partitions), format)
	for _, p := range partitions {
		o.logger.WithField("fstype", p.fsType).Debugf("%s: %s", filepath.Base(p.filename), p.script)
	}

	return &Collection{format: format, partitions: partitions}, nil
}

// buildLong takes every script verbatim; the user controls the table.
func buildLong(filenames []string) ([]Partition, error) {
	partitions := make([]Partition, 0, len(filenames))
	for _, fname := range filenames {
		n, ok, err := matchLong(filepath.Base(fname))
		if !ok {
			return nil, &GrammarError{Filename: fname, Reason: "not in long format"}
		}
		if err != nil {
			return nil, &GrammarError{Filename: fname, Reason: err.Error()}
		}
		partitions = append(partitions, Partition{
			filename: fname,
			index:    n.index,
			script:   n.script,
			fsType:   n.fsType,
			diskSize: n.diskSize,
		})
	}
	return partitions, nil
}

// buildShort lays the partitions out back to back. Each partition starts
// where the previous one was declared to end; the last one is stretched to
// the end of the image.
func buildShort(filenames []string) ([]Partition, error) {
	partitions := make([]Partition, 0, len(filenames))
	previousEnd := FirstPartitionStart
	last := len(filenames) - 1

	for i, fname := range filenames {
		n, ok := matchShort(filepath.Base(fname))
		if !ok {
			return nil, &GrammarError{Filename: fname, Reason: "not in short format"}
		}

		start := previousEnd
		declaredEnd := n.end
		previousEnd = declaredEnd

		end := declaredEnd
		if i == last {
			end = lastPartitionEnd
		}

		var script string
		if i == 0 {
			tableType := "gpt"
			if n.msdos {
				tableType = "msdos"
			}
			script = fmt.Sprintf("unit s mklabel %s mkpart primary %s %s %s set 1 boot on", tableType, n.fsType, start, end)
		} else {
			script = fmt.Sprintf("mkpart primary %s %s %s", n.fsType, start, end)
		}

		partitions = append(partitions, Partition{
			filename:    fname,
			index:       n.index,
			script:      script,
			fsType:      n.fsType,
			declaredEnd: declaredEnd,
		})
	}
	return partitions, nil
}
