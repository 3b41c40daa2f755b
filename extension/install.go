package extension

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/brokerflux/config"
)

// Permission bits of installed artifacts.
const (
	DirMode  fs.FileMode = 0o755
	FileMode fs.FileMode = 0o644
)

// Install copies the extension folder src into extensionsDir/<id>, where id
// comes from the descriptor of src. Directories are created with DirMode and
// files with FileMode regardless of their source permissions. An existing
// installation is overwritten file by file. When extensionsDir lies inside
// src, the sub-folder of src leading to it is not copied. The installed path
// is returned.
func Install(src, extensionsDir string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", src)
	}
	d, err := ReadDescriptor(src)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(extensionsDir, d.ID)
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	if absDest == absSrc {
		return "", fmt.Errorf("cannot install %s onto itself", src)
	}
	if err := os.MkdirAll(dest, DirMode); err != nil {
		return "", err
	}
	err = filepath.WalkDir(src, func(path string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		switch {
		case e.IsDir() && rel != "." && within(absDest, filepath.Join(absSrc, rel)):
			// the branch of src holding the installation itself
			return filepath.SkipDir
		case e.IsDir():
			if err := os.MkdirAll(target, DirMode); err != nil {
				return err
			}
			return os.Chmod(target, DirMode)
		case e.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
	if err != nil {
		return "", fmt.Errorf("install %s: %w", d.ID, err)
	}
	if _, err := os.Stat(filepath.Join(src, DescriptorFile)); os.IsNotExist(err) {
		if err := WriteDescriptor(dest, d); err != nil {
			return "", err
		}
	}
	if err := ensureConfigDir(dest); err != nil {
		return "", err
	}
	return dest, nil
}

// within reports whether path is dir or one of its descendants.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func ensureConfigDir(dest string) error {
	dir := filepath.Join(dest, filepath.Dir(filepath.FromSlash(config.ConfigFile)))
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return err
	}
	return os.Chmod(dir, DirMode)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, FileMode)
}
