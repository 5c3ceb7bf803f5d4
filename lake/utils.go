package lake

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/twinj/uuid"
)

// ConvertToAbsolute returns path unchanged if it is absolute, otherwise joined
// to baseDir.  An empty baseDir means the current working directory.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("cannot make empty path absolute")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if baseDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		baseDir = cwd
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}

// NewCommitID returns a new 32 character hexadecimal identifier for a commit.
func NewCommitID() string {
	return fmt.Sprintf("%x", uuid.NewV4().Bytes())
}

// IsDir returns true if path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
