// Package scanner discovers the documents that make up the corpus.
// It lists the direct entries of each configured folder and keeps
// .docx and .pptx files, in a deterministic order.
package scanner

import "time"

// FileRecord describes one discovered document as reported to callers.
type FileRecord struct {
	// Filename is the folder-joined path, e.g. "data/qdd/runbook.docx".
	Filename string `json:"filename"`

	// LastModified is the file mtime in RFC 3339, local time zone.
	LastModified string `json:"last_modified"`
}

// File is a scan result: the caller-facing record plus raw metadata.
type File struct {
	Record  FileRecord
	Path    string
	Size    int64
	ModTime time.Time
}

// FormatModTime renders t the way FileRecord.LastModified expects.
func FormatModTime(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}
