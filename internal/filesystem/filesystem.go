package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSystem writes generated playlists under a base directory.
//
// Files are replaced atomically: content goes to a uniquely named temporary
// file in the destination directory which is then renamed over the target, so
// a reader (or a concurrent run) sees either the previous complete file or the
// new complete file, never a partial one.
//
// See: https://context7.com/golang/go for Go file I/O documentation
type FileSystem struct {
	baseDir string
	perm    os.FileMode
}

// New creates a new FileSystem handler.
//
// Parameters:
//   - baseDir: The directory relative paths are resolved against, "" for the working directory
func New(baseDir string) *FileSystem {
	return &FileSystem{baseDir: baseDir, perm: 0o644}
}

// GetLocalPath returns the path a name resolves to.
//
// Absolute names are returned cleaned, relative names are joined to the base directory.
func (fs *FileSystem) GetLocalPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if filepath.IsAbs(name) || fs.baseDir == "" {
		return filepath.Clean(name), nil
	}
	return filepath.Join(fs.baseDir, name), nil
}

// WriteFile replaces the file at name with content.
//
// This method creates any necessary parent directories and writes the file
// atomically by writing to a temporary file first, then renaming.
//
// Returns the path where the file was written and any error encountered.
func (fs *FileSystem) WriteFile(name string, content []byte) (string, error) {
	localPath, err := fs.GetLocalPath(name)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, fs.perm); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}

	// Rename to final path (atomic on most systems)
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return "", fmt.Errorf("failed to rename %s to %s: %w", tmpPath, localPath, err)
	}

	return localPath, nil
}

// FileExists checks if a file exists at the path name resolves to.
func (fs *FileSystem) FileExists(name string) (bool, error) {
	localPath, err := fs.GetLocalPath(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(localPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
