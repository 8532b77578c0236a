package mountmanager

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/larsks/diskimg/internal/runner"
	"github.com/larsks/diskimg/internal/runner/fakes"
)

func TestStackReleasesInReverseOrder(t *testing.T) {
	var order []string
	s := NewStack(testLogger())
	for _, name := range []string{"attach", "mount p1", "mount p2"} {
		s.Push(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if want := []string{"mount p2", "mount p1", "attach"}; !reflect.DeepEqual(order, want) {
		t.Errorf("Released in order %q, want %q", order, want)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty stack, got %d entries", s.Len())
	}
}

func TestStackContinuesAfterFailure(t *testing.T) {
	errBusy := errors.New("target is busy")
	errDetach := errors.New("detach failed")

	var released []string
	s := NewStack(testLogger())
	s.Push("attach", func() error {
		released = append(released, "attach")
		return errDetach
	})
	s.Push("mount", func() error {
		released = append(released, "mount")
		return errBusy
	})

	err := s.Close()
	if !errors.Is(err, errBusy) || !errors.Is(err, errDetach) {
		t.Errorf("Expected both release errors, got %v", err)
	}
	if want := []string{"mount", "attach"}; !reflect.DeepEqual(released, want) {
		t.Errorf("Released %q, want %q", released, want)
	}

	// Already released entries are not released again.
	if err := s.Close(); err != nil {
		t.Errorf("Expected second Close() to succeed, got %v", err)
	}
}

func TestMount(t *testing.T) {
	target := filepath.Join(t.TempDir(), "p1")
	r := fakes.NewFakeRunner()

	release, err := Mount(r, testLogger(), "/dev/loop0p1", target)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("Expected mount point %s to be created", target)
	}

	if err := release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Expected mount point to be removed")
	}

	want := []string{"mount /dev/loop0p1 " + target, "umount " + target}
	if got := r.CommandLines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Commands = %q, want %q", got, want)
	}
}

func TestMountFailureRemovesCreatedDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "p1")
	r := fakes.NewFakeRunner()
	r.AddResult("mount /dev/loop0p1 "+target, fakes.FakeResult{
		Err: &runner.CommandError{Name: "mount", ExitCode: 32},
	})

	if _, err := Mount(r, testLogger(), "/dev/loop0p1", target); err == nil {
		t.Fatal("Expected mount error")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Expected mount point to be removed after failure")
	}
}

func TestMountUnmountFailureKeepsDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "p1")
	r := fakes.NewFakeRunner()
	r.AddResult("umount "+target, fakes.FakeResult{
		Err: &runner.CommandError{Name: "umount", ExitCode: 32, Stderr: "target is busy"},
	})

	release, err := Mount(r, testLogger(), "/dev/loop0p1", target)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if err := release(); err == nil {
		t.Fatal("Expected unmount error")
	}
	if _, err := os.Stat(target); err != nil {
		t.Error("Expected mount point to remain after a failed unmount")
	}
}

// newTestMountManager returns a manager for a losetup attached image whose
// loop device has the given number of partitions.
func newTestMountManager(t *testing.T, partitions int) (*MountManager, *fakes.FakeRunner, string) {
	t.Helper()
	dir := t.TempDir()

	image := filepath.Join(dir, "disk.img")
	touch(t, image)

	device := filepath.Join(dir, "loop3")
	for i := 1; i <= partitions; i++ {
		touch(t, device+"p"+string(rune('0'+i)))
	}

	r := fakes.NewFakeRunner()
	r.AddResult("losetup -f", fakes.FakeResult{Stdout: device + "\n"})

	root := filepath.Join(dir, "mnt")
	mm := NewMountManager(image, root, newLosetupBackend(r, testLogger()), r, testLogger())
	return mm, r, device
}

func TestMountManagerMount(t *testing.T) {
	mm, r, device := newTestMountManager(t, 3)
	root := mm.MountRoot()

	// 7 does not exist and 3 is repeated.
	if err := mm.Mount([]int{3, 1, 7, 3}); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	want := []string{filepath.Join(root, "p3"), filepath.Join(root, "p1")}
	if got := mm.Mounted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mounted() = %q, want %q", got, want)
	}
	for _, dir := range want {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("Expected %s to exist: %v", dir, err)
		}
	}

	if err := mm.Unmount(); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}

	wantCmds := []string{
		"losetup -f",
		"losetup -P " + device + " " + mm.image,
		"mount " + device + "p3 " + filepath.Join(root, "p3"),
		"mount " + device + "p1 " + filepath.Join(root, "p1"),
		"umount " + filepath.Join(root, "p1"),
		"umount " + filepath.Join(root, "p3"),
		"losetup -d " + device,
	}
	if got := r.CommandLines(); !reflect.DeepEqual(got, wantCmds) {
		t.Errorf("Commands = %q, want %q", got, wantCmds)
	}

	if _, err := os.Stat(root); err != nil {
		t.Error("Expected mount root to be kept")
	}
	if len(mm.Mounted()) != 0 {
		t.Errorf("Expected no mounts after Unmount(), got %q", mm.Mounted())
	}
}

func TestMountManagerMountAll(t *testing.T) {
	mm, _, _ := newTestMountManager(t, 2)

	if err := mm.Mount(nil); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	defer mm.Unmount()

	want := []string{filepath.Join(mm.MountRoot(), "p1"), filepath.Join(mm.MountRoot(), "p2")}
	if got := mm.Mounted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Mounted() = %q, want %q", got, want)
	}
}

func TestMountManagerMountFailureReleases(t *testing.T) {
	mm, r, device := newTestMountManager(t, 2)
	p2 := filepath.Join(mm.MountRoot(), "p2")
	r.AddResult("mount "+device+"p2 "+p2, fakes.FakeResult{
		Err: &runner.CommandError{Name: "mount", ExitCode: 32},
	})

	err := mm.Mount([]int{1, 2})
	var cerr *runner.CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *runner.CommandError, got %v", err)
	}

	if !r.Ran("umount "+filepath.Join(mm.MountRoot(), "p1")) || !r.Ran("losetup -d "+device) {
		t.Errorf("Expected p1 to be unmounted and the device freed, got %q", r.CommandLines())
	}
	if _, err := os.Stat(filepath.Join(mm.MountRoot(), "p1")); !os.IsNotExist(err) {
		t.Error("Expected p1 mount point to be removed")
	}
}

func TestMountManagerMountNBDDiscoveryFailure(t *testing.T) {
	image := filepath.Join(t.TempDir(), "disk.img")
	touch(t, image)

	r := fakes.NewFakeRunner()
	r.AddResult("sfdisk -J /dev/nbd5", fakes.FakeResult{
		Err: &runner.CommandError{Name: "sfdisk", ExitCode: 1},
	})

	backend := newNBDBackend("/dev/nbd5", "", r, testLogger())
	mm := NewMountManager(image, filepath.Join(t.TempDir(), "mnt"), backend, r, testLogger())
	if err := mm.Mount([]int{1}); err == nil {
		t.Fatal("Expected Mount() to fail")
	}

	if !r.Ran("qemu-nbd --disconnect /dev/nbd5") {
		t.Errorf("Expected /dev/nbd5 to be disconnected, got %q", r.CommandLines())
	}
}

func TestMountManagerNotAnImage(t *testing.T) {
	r := fakes.NewFakeRunner()
	mm := NewMountManager(t.TempDir(), filepath.Join(t.TempDir(), "mnt"), newLosetupBackend(r, testLogger()), r, testLogger())

	if err := mm.Mount(nil); err == nil {
		t.Error("Expected error for a directory")
	}
	if len(r.Commands) != 0 {
		t.Errorf("Expected no commands, got %q", r.CommandLines())
	}
}

func TestIsImageFile(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "test.img")
	touch(t, testFile)

	mm := NewMountManager(testFile, "/mnt/test", nil, nil, testLogger())
	if !mm.isImageFile() {
		t.Error("Expected isImageFile to return true for regular file")
	}

	mm2 := NewMountManager("/dev/nonexistent", "/mnt/test", nil, nil, testLogger())
	if mm2.isImageFile() {
		t.Error("Expected isImageFile to return false for non-existent file")
	}
}

func TestStackPop(t *testing.T) {
	var released []string
	s := NewStack(testLogger())
	s.Push("attach", func() error {
		released = append(released, "attach")
		return nil
	})
	s.Push("mount", func() error {
		released = append(released, "mount")
		return nil
	})

	if err := s.Pop(); err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if !reflect.DeepEqual(released, []string{"mount"}) {
		t.Errorf("Expected only mount to be released, got %q", released)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 entry left, got %d", s.Len())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !reflect.DeepEqual(released, []string{"mount", "attach"}) {
		t.Errorf("Released %q", released)
	}
	if err := s.Pop(); err != nil {
		t.Errorf("Expected Pop() on an empty stack to succeed, got %v", err)
	}
}
