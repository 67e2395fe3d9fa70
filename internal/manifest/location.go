package manifest

import (
	"path/filepath"
	"strings"
)

const (
	SourceExt = ".sql"
	DocExt    = ".yml"
)

// SourcePath returns the model's original_file_path verbatim.
func (d *Document) SourcePath(name string) (string, error) {
	node, err := d.FindByName(name)
	if err != nil {
		return "", err
	}
	return node.FilePath()
}

// DocPath returns the sidecar documentation path next to the model file.
func (d *Document) DocPath(name string) (string, error) {
	path, err := d.SourcePath(name)
	if err != nil {
		return "", err
	}
	return DocPathFor(path)
}

// DocPathFor swaps the final .sql extension for .yml. Paths with any other
// extension are rejected, so applying it twice fails.
func DocPathFor(path string) (string, error) {
	if filepath.Ext(path) != SourceExt {
		return "", &ExtensionMismatchError{Path: path, Want: SourceExt}
	}
	return strings.TrimSuffix(path, SourceExt) + DocExt, nil
}
