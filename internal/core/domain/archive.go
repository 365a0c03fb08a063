package domain

import "io"

// ArchiveEntry is one record enumerated from a fetched archive.
// It only lives for the duration of an ingestion run.
type ArchiveEntry struct {
	// Path is the archive-relative name, including the synthetic root folder
	Path string

	// IsDir marks directory records
	IsDir bool

	// UncompressedSize as declared by the archive (may be a lie)
	UncompressedSize uint64

	// Open returns a stream of the entry's decompressed bytes
	Open func() (io.ReadCloser, error)
}

// SnapshotFile is an eligible entry after normalisation and reading.
type SnapshotFile struct {
	Path    string
	Content []byte
}

// Snapshot is the ordered set of files that will replace a project's
// source files. Paths are unique; adding a path twice keeps the first
// position and the last content.
type Snapshot struct {
	files []SnapshotFile
	index map[string]int
	bytes int64
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{index: make(map[string]int)}
}

// Add inserts a file, replacing the content of an existing path.
// It reports whether an earlier entry was overwritten.
func (s *Snapshot) Add(path string, content []byte) (replaced bool) {
	if i, ok := s.index[path]; ok {
		s.bytes += int64(len(content)) - int64(len(s.files[i].Content))
		s.files[i].Content = content
		return true
	}
	s.index[path] = len(s.files)
	s.files = append(s.files, SnapshotFile{Path: path, Content: content})
	s.bytes += int64(len(content))
	return false
}

// Files returns the files in enumeration order of first appearance.
func (s *Snapshot) Files() []SnapshotFile {
	return s.files
}

// Len returns the number of unique paths.
func (s *Snapshot) Len() int {
	return len(s.files)
}

// Bytes returns the total content size.
func (s *Snapshot) Bytes() int64 {
	return s.bytes
}
