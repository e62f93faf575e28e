package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// extractDocx returns the body paragraphs of word/document.xml joined by
// newlines. Tables, headers and text boxes are not part of the body paragraph
// list and are ignored.
func extractDocx(ctx context.Context, zr *zip.Reader) (string, error) {
	rc, err := openPart(zr, docxBodyPart)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	paragraphs, err := docxParagraphs(ctx, xml.NewDecoder(rc))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", docxBodyPart, err)
	}
	return joinNonBlank(paragraphs), nil
}

func docxParagraphs(ctx context.Context, dec *xml.Decoder) ([]string, error) {
	var (
		paragraphs []string
		stack      []string
		para       *strings.Builder
		paraDepth  int
		inText     bool
		skipDepth  int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			depth := len(stack)

			if skipDepth > 0 {
				continue
			}
			if para == nil {
				// Body paragraphs are direct children of w:body.
				if t.Name.Local == "p" && depth >= 2 && stack[depth-2] == "body" {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					para = &strings.Builder{}
					paraDepth = depth
				}
				continue
			}

			switch t.Name.Local {
			case "txbxContent":
				skipDepth = depth
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}

		case xml.EndElement:
			depth := len(stack)
			if depth == 0 {
				return nil, fmt.Errorf("unbalanced element %s", t.Name.Local)
			}
			stack = stack[:depth-1]

			switch {
			case skipDepth == depth:
				skipDepth = 0
			case skipDepth > 0:
			case para != nil && depth == paraDepth:
				paragraphs = append(paragraphs, para.String())
				para = nil
			case t.Name.Local == "t":
				inText = false
			}

		case xml.CharData:
			if para != nil && inText && skipDepth == 0 {
				para.Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return paragraphs, nil
}
