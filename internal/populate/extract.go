package populate

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// ExtractFile extracts the tar archive at path into dst.
func ExtractFile(path, dst string, compressed bool, logger logrus.FieldLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading gzip header: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	return Extract(r, dst, logger)
}

type dirTimes struct {
	path  string
	mtime time.Time
}

// Extract writes the members of a tar stream below dst. Ownership is
// restored when running as root.
func Extract(r io.Reader, dst string, logger logrus.FieldLogger) error {
	root, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	sameOwner := os.Geteuid() == 0

	var dirs []dirTimes
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		path, err := resolve(root, header.Name)
		if err != nil {
			return err
		}
		mode := os.FileMode(header.Mode).Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
			if err := os.Chmod(path, mode); err != nil {
				return fmt.Errorf("setting directory permissions: %w", err)
			}
			dirs = append(dirs, dirTimes{path: path, mtime: header.ModTime})
		case tar.TypeReg:
			if err := writeFile(path, tr, mode); err != nil {
				return err
			}
			if err := os.Chtimes(path, header.ModTime, header.ModTime); err != nil {
				return fmt.Errorf("setting file times: %w", err)
			}
		case tar.TypeSymlink:
			if err := replace(path); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, path); err != nil {
				return fmt.Errorf("creating symlink %s -> %s: %w", path, header.Linkname, err)
			}
		case tar.TypeLink:
			target, err := resolve(root, header.Linkname)
			if err != nil {
				return err
			}
			if err := replace(path); err != nil {
				return err
			}
			if err := os.Link(target, path); err != nil {
				return fmt.Errorf("creating hard link %s -> %s: %w", path, target, err)
			}
		default:
			logger.Warnf("skipping %s: unsupported tar entry type %q", header.Name, header.Typeflag)
			continue
		}

		if sameOwner {
			if err := os.Lchown(path, header.Uid, header.Gid); err != nil {
				logger.WithError(err).Debugf("unable to set owner of %s", path)
			}
		}
	}

	// Restored last since creating entries updates the parent's mtime.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chtimes(dirs[i].path, dirs[i].mtime, dirs[i].mtime); err != nil {
			return fmt.Errorf("setting directory times: %w", err)
		}
	}
	return nil
}

// resolve maps an archive member name to a path below root.
func resolve(root, name string) (string, error) {
	path := filepath.Join(root, name)
	if path != root && !strings.HasPrefix(path, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("tar entry %s is outside of %s", name, root)
	}
	return path, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := replace(path); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}
	return nil
}

// replace removes a non-directory entry at path so it can be recreated.
func replace(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return fmt.Errorf("%s already exists as a directory", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing existing file: %w", err)
	}
	return nil
}
