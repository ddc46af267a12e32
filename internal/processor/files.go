package processor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeFile stores data at dest through a temporary file in the same
// directory, so dest is either absent or complete.
func writeFile(dest string, data []byte, mode os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "squeeze-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return finish(tmpFile, dest, mode)
}

// copyFile reproduces src at dest byte for byte.
func copyFile(src, dest string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "squeeze-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer os.Remove(tmpFile.Name())

	n, err := io.Copy(tmpFile, in)
	if err != nil {
		_ = tmpFile.Close()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := finish(tmpFile, dest, mode); err != nil {
		return 0, err
	}
	return n, nil
}

func finish(tmpFile *os.File, dest string, mode os.FileMode) error {
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := replaceFile(tmpFile.Name(), dest); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
