// Package extract pulls plain text out of Office Open XML documents.
//
// Only .docx and .pptx are supported. Both are zip containers; the text parts
// are streamed through encoding/xml so large documents are never fully decoded
// into a DOM.
package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// maxPartSize bounds how much of a single XML part is read.
const maxPartSize = 64 << 20

// Supported extensions. Matching is case-sensitive.
const (
	ExtDocx = ".docx"
	ExtPptx = ".pptx"
)

// Supported reports whether name has an extension Extract can handle.
func Supported(name string) bool {
	return strings.HasSuffix(name, ExtDocx) || strings.HasSuffix(name, ExtPptx)
}

// Extract returns the text of the document at p, dispatching on its extension.
// Open, zip and XML failures are reported as ExtractionError.
func Extract(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var extract func(context.Context, *zip.Reader) (string, error)
	switch {
	case strings.HasSuffix(p, ExtDocx):
		extract = extractDocx
	case strings.HasSuffix(p, ExtPptx):
		extract = extractPptx
	default:
		return "", docerrors.New(docerrors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported document format %q", filepath.Ext(p)), nil).
			WithDetail("path", p)
	}

	rc, err := zip.OpenReader(p)
	if err != nil {
		return "", docerrors.ExtractionError(p, err)
	}
	defer func() { _ = rc.Close() }()

	text, err := extract(ctx, &rc.Reader)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", docerrors.ExtractionError(p, err)
	}
	return text, nil
}

// openPart opens a named part of the container.
func openPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open part %s: %w", name, err)
			}
			return struct {
				io.Reader
				io.Closer
			}{io.LimitReader(rc, maxPartSize), rc}, nil
		}
	}
	return nil, fmt.Errorf("missing part %s", name)
}

// joinNonBlank joins the entries that are not blank after trimming.
func joinNonBlank(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
