package partition

import (
	"errors"
	"fmt"
)

var (
	ErrNoPartitions = errors.New("no partitions found")
)

// GrammarError is returned when a file in a partition set does not follow
// the filename format selected by the first file of the set.
type GrammarError struct {
	Filename string
	Reason   string
}

func (e *GrammarError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unable to parse partition file name: %s", e.Filename)
	}
	return fmt.Sprintf("unable to parse partition file name: %s: %s", e.Filename, e.Reason)
}
