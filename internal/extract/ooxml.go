package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"sort"
	"strings"
)

// Word and PowerPoint files (.docx/.pptx) are ZIP containers holding OOXML
// parts. Visible text lives in <w:t>/<a:t> runs; paragraph ends map to
// newlines. Legacy binary .doc/.ppt files fail the ZIP open and degrade to
// empty text like any other parse error.

func (e *Extractor) fromDocx(path string) string {
	text, err := zipPartText(path, func(name string) bool {
		return name == "word/document.xml"
	})
	if err != nil {
		e.logger.Warn("extracting Word document failed", "path", path, "error", err)
		return ""
	}
	return text
}

func (e *Extractor) fromPptx(path string) string {
	text, err := zipPartText(path, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	})
	if err != nil {
		e.logger.Warn("extracting PowerPoint document failed", "path", path, "error", err)
		return ""
	}
	return text
}

// zipPartText concatenates the text runs of every archive part accepted by
// match, in lexical part order (slide1.xml before slide2.xml).
func zipPartText(path string, match func(name string) bool) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var parts []*zip.File
	for _, f := range zr.File {
		if match(f.Name) {
			parts = append(parts, f)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })

	var b strings.Builder
	for _, part := range parts {
		rc, err := part.Open()
		if err != nil {
			return "", err
		}
		text, err := textRuns(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// textRuns walks an OOXML part and collects character data inside <t>
// elements (w:t in WordprocessingML, a:t in DrawingML). Paragraph closes
// (</w:p>, </a:p>) become newlines.
func textRuns(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
