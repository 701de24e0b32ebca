package filesystem

import (
	"fmt"
	"os"

	"github.com/downpour-dl/downpour/internal/port"
)

// Manager handles local filesystem concerns for the download directory.
type Manager struct {
	rootDir string
}

// Ensure Manager implements port.SpaceChecker
var _ port.SpaceChecker = (*Manager)(nil)

// NewManager creates a filesystem manager rooted at the download
// directory, creating it if necessary.
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	return &Manager{rootDir: rootDir}, nil
}

// RootDir returns the download root directory.
func (m *Manager) RootDir() string {
	return m.rootDir
}
