//go:build !linux

package mountmanager

import "errors"

func makeLoopDevice(path string) error {
	return errors.New("loop devices are only supported on linux")
}
