package fsutil

// FileStore provides an interface for file system operations
type FileStore interface {
	// ReadFile reads a file and returns its contents
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating parent directories as needed
	WriteFile(path string, data []byte) error

	// MakeDirectory creates a new directory and all necessary parents
	MakeDirectory(path string) error

	// Remove deletes a single file. A missing file is not an error.
	Remove(path string) error

	// ListFiles walks root and returns the regular files accepted by match,
	// in lexical order. A root that is a file is returned alone if it matches.
	ListFiles(root string, match func(path string) bool) ([]string, error)
}
