package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	pptxPresentationPart = "ppt/presentation.xml"
	pptxPresentationRels = "ppt/_rels/presentation.xml.rels"
)

type presentation struct {
	Slides []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// extractPptx returns the text of every top-level text shape, slide by slide
// in presentation order, joined by newlines.
func extractPptx(ctx context.Context, zr *zip.Reader) (string, error) {
	slides, err := slideParts(zr)
	if err != nil {
		return "", err
	}

	var texts []string
	for _, part := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		shapes, err := slideShapeTexts(zr, part)
		if err != nil {
			return "", err
		}
		texts = append(texts, shapes...)
	}
	return joinNonBlank(texts), nil
}

// slideParts resolves p:sldIdLst through the presentation relationships.
func slideParts(zr *zip.Reader) ([]string, error) {
	var pres presentation
	if err := decodePart(zr, pptxPresentationPart, &pres); err != nil {
		return nil, err
	}
	var rels relationships
	if err := decodePart(zr, pptxPresentationRels, &rels); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		targets[r.ID] = r.Target
	}

	parts := make([]string, 0, len(pres.Slides))
	for _, s := range pres.Slides {
		target, ok := targets[s.RID]
		if !ok {
			return nil, fmt.Errorf("slide relationship %q not found", s.RID)
		}
		if strings.HasPrefix(target, "/") {
			parts = append(parts, strings.TrimPrefix(target, "/"))
		} else {
			parts = append(parts, path.Join("ppt", target))
		}
	}
	return parts, nil
}

func decodePart(zr *zip.Reader, name string, v any) error {
	rc, err := openPart(zr, name)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// slideShapeTexts walks the direct p:sp children of p:spTree. A shape with a
// p:txBody yields its a:p paragraphs joined by newlines; group shapes,
// pictures and graphic frames are skipped.
func slideShapeTexts(zr *zip.Reader, part string) ([]string, error) {
	rc, err := openPart(zr, part)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	dec := xml.NewDecoder(rc)
	var (
		texts      []string
		stack      []string
		shapeDepth int
		hasBody    bool
		paragraphs []string
		para       *strings.Builder
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", part, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			depth := len(stack)

			if shapeDepth == 0 {
				if t.Name.Local == "sp" && depth >= 2 && stack[depth-2] == "spTree" {
					shapeDepth = depth
					hasBody = false
					paragraphs = nil
				}
				continue
			}

			switch {
			case t.Name.Local == "txBody" && depth == shapeDepth+1:
				hasBody = true
			case !hasBody:
			case t.Name.Local == "p" && para == nil:
				para = &strings.Builder{}
			case t.Name.Local == "t" && para != nil:
				inText = true
			case t.Name.Local == "br" && para != nil:
				para.WriteByte('\n')
			}

		case xml.EndElement:
			depth := len(stack)
			if depth == 0 {
				return nil, fmt.Errorf("parse %s: unbalanced element %s", part, t.Name.Local)
			}
			stack = stack[:depth-1]

			switch {
			case shapeDepth == 0:
			case depth == shapeDepth:
				if hasBody {
					texts = append(texts, strings.Join(paragraphs, "\n"))
				}
				shapeDepth = 0
			case t.Name.Local == "p" && para != nil:
				paragraphs = append(paragraphs, para.String())
				para = nil
			case t.Name.Local == "t":
				inText = false
			}

		case xml.CharData:
			if inText && para != nil {
				para.Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("parse %s: %w", part, io.ErrUnexpectedEOF)
	}
	return texts, nil
}
