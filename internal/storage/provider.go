// Package storage defines the data directory abstraction.
package storage

// Provider is the interface for data file operations.
// All paths are relative to the data directory.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Abs resolves path to an absolute file-system path.
	Abs(path string) (string, error)
}
