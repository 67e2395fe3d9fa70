package manifest

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checks via errors.Is().
var (
	ErrNotAProjectDirectory = errors.New("dbt_project.yml not found. Are you in the dbt directory?")
	ErrManifestNotFound     = errors.New("dbt manifest not found. Have you run a dbt command such as `dbt run` or `dbt compile`?")
	ErrNodeNotFound         = errors.New("model not found in the manifest")
	ErrDanglingDependency   = errors.New("dependency not found in the manifest")
	ErrMissingField         = errors.New("manifest record is missing a field")
	ErrExtensionMismatch    = errors.New("unexpected file extension")
)

// ManifestNotFoundError reports the manifest path that was expected.
type ManifestNotFoundError struct {
	Path string
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("dbt manifest not found at %s. Have you run a dbt command such as `dbt run` or `dbt compile`?", e.Path)
}

func (e *ManifestNotFoundError) Unwrap() error { return ErrManifestNotFound }

type NodeNotFoundError struct {
	Name string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("model %s not found in the manifest", e.Name)
}

func (e *NodeNotFoundError) Unwrap() error { return ErrNodeNotFound }

// DanglingDependencyError is returned when a depends_on id has no node.
type DanglingDependencyError struct {
	Node       string
	Dependency string
}

func (e *DanglingDependencyError) Error() string {
	return fmt.Sprintf("model %s depends on %s, which is not in the manifest", e.Node, e.Dependency)
}

func (e *DanglingDependencyError) Unwrap() error { return ErrDanglingDependency }

// MissingFieldError is raised lazily, when a field is read from a record
// that does not carry it.
type MissingFieldError struct {
	Node  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("manifest record %s has no %s", e.Node, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

type ExtensionMismatchError struct {
	Path string
	Want string
}

func (e *ExtensionMismatchError) Error() string {
	return fmt.Sprintf("%s does not end in %s", e.Path, e.Want)
}

func (e *ExtensionMismatchError) Unwrap() error { return ErrExtensionMismatch }
