package ports

// FileSystem abstracts the file system operations used for input discovery
// and report output.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating parent directories if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// IsDir reports whether path is a directory.
	// It returns an error if path does not exist.
	IsDir(path string) (bool, error)

	// ListFiles returns every regular file below root, recursively,
	// in lexical order.
	ListFiles(root string) ([]string, error)

	// Remove deletes a file or empty directory.
	Remove(path string) error
}
