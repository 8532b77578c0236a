package mountmanager

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type stackEntry struct {
	name    string
	release Release
}

// Stack holds acquired resources and releases them in reverse order.
type Stack struct {
	entries []stackEntry
	logger  logrus.FieldLogger
}

func NewStack(logger logrus.FieldLogger) *Stack {
	return &Stack{logger: logger}
}

func (s *Stack) Push(name string, release Release) {
	s.entries = append(s.entries, stackEntry{name: name, release: release})
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Pop releases the most recent entry.
func (s *Stack) Pop() error {
	if len(s.entries) == 0 {
		return nil
	}
	entry := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]

	if err := entry.release(); err != nil {
		return fmt.Errorf("release %s: %w", entry.name, err)
	}
	return nil
}

// Close runs every release, most recent first. A failed release does not
// stop the ones below it; all failures are returned together.
func (s *Stack) Close() error {
	var errs []error
	for len(s.entries) > 0 {
		entry := s.entries[len(s.entries)-1]
		s.entries = s.entries[:len(s.entries)-1]

		if err := entry.release(); err != nil {
			s.logger.WithError(err).Errorf("failed to release %s", entry.name)
			errs = append(errs, fmt.Errorf("release %s: %w", entry.name, err))
		}
	}
	return errors.Join(errs...)
}
