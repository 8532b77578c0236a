package mountmanager

import "golang.org/x/sys/unix"

const loopMajor = 7

// makeLoopDevice creates the block device node for loop device 0.
func makeLoopDevice(path string) error {
	return unix.Mknod(path, unix.S_IFBLK|0660, int(unix.Mkdev(loopMajor, 0)))
}
