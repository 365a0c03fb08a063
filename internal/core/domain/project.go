package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Project is a tracked repository whose source snapshot is ingested.
// It is owned by the surrounding application; ingestion only replaces
// its SourceFile set.
type Project struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	ArchiveURL string    `json:"archive_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Slug returns "username-name", used to label temporary archives.
func (p *Project) Slug() string {
	return p.Username + "-" + p.Name
}

// SourceFile is one extracted text file of a project snapshot.
type SourceFile struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSourceFile creates an unsaved source file. The ID is assigned by the store.
func NewSourceFile(projectID, path string, content []byte) *SourceFile {
	return &SourceFile{
		ProjectID: projectID,
		Path:      path,
		Content:   DecodeText(content),
		CreatedAt: time.Now(),
	}
}

// DecodeText converts raw entry bytes into storable text.
// Invalid UTF-8 is replaced with U+FFFD and NUL bytes are dropped,
// since PostgreSQL text columns reject both.
func DecodeText(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return s
}
