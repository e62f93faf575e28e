// Package extracttest builds minimal .docx and .pptx containers for tests.
package extracttest

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// WriteZip writes a zip container with the given parts to path.
func WriteZip(t testing.TB, path string, parts map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// DocumentXML renders a word/document.xml whose body holds one paragraph per entry.
// Paragraph text is split on "\t" into runs separated by w:tab.
func DocumentXML(paragraphs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="` + nsW + `"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString("<w:p>")
		for i, run := range strings.Split(p, "\t") {
			if i > 0 {
				sb.WriteString("<w:r><w:tab/></w:r>")
			}
			sb.WriteString(`<w:r><w:t xml:space="preserve">` + html.EscapeString(run) + `</w:t></w:r>`)
		}
		sb.WriteString("</w:p>")
	}
	sb.WriteString(`<w:sectPr/></w:body></w:document>`)
	return sb.String()
}

// WriteDocx writes a .docx with one body paragraph per entry.
func WriteDocx(t testing.TB, path string, paragraphs ...string) {
	t.Helper()
	WriteZip(t, path, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types/>`,
		"word/document.xml":   DocumentXML(paragraphs...),
	})
}

// SlideXML renders a slide with one text shape per entry. Lines within an
// entry become separate a:p paragraphs.
func SlideXML(shapes ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<p:sld xmlns:p="` + nsP + `" xmlns:a="` + nsA + `"><p:cSld><p:spTree>`)
	sb.WriteString(`<p:nvGrpSpPr/><p:grpSpPr/>`)
	for i, shape := range shapes {
		fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Shape %d"/></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/>`, i+2, i+1)
		for _, line := range strings.Split(shape, "\n") {
			sb.WriteString(`<a:p><a:r><a:t>` + html.EscapeString(line) + `</a:t></a:r></a:p>`)
		}
		sb.WriteString(`</p:txBody></p:sp>`)
	}
	sb.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return sb.String()
}

// PptxParts returns the container parts for a presentation with the given
// slides. Slide files are named in reverse so order must come from sldIdLst.
func PptxParts(slides ...[]string) map[string]string {
	var ids, rels strings.Builder
	parts := map[string]string{"[Content_Types].xml": `<?xml version="1.0"?><Types/>`}
	for i, shapes := range slides {
		file := fmt.Sprintf("slides/slide%d.xml", len(slides)-i)
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+10)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="slide" Target="%s"/>`, i+10, file)
		parts["ppt/"+file] = SlideXML(shapes...)
	}
	parts["ppt/presentation.xml"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<p:presentation xmlns:p="` + nsP + `" xmlns:r="` + nsR + `"><p:sldIdLst>` + ids.String() + `</p:sldIdLst></p:presentation>`
	parts["ppt/_rels/presentation.xml.rels"] = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels.String() + `</Relationships>`
	return parts
}

// WritePptx writes a .pptx whose slides hold the given text shapes.
func WritePptx(t testing.TB, path string, slides ...[]string) {
	t.Helper()
	WriteZip(t, path, PptxParts(slides...))
}
