package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wParagraph matches one <w:p ...>...</w:p> paragraph, with any attributes.
	wParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// wText matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>.
	wText = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// wBreak matches tabs and line breaks inside a run.
	wBreak = regexp.MustCompile(`<w:(?:tab|br|cr)\b[^>]*/>`)

	overridePart   = regexp.MustCompile(`<Override\b[^>]*>`)
	partNameAttr   = regexp.MustCompile(`PartName="([^"]+)"`)
	contentTypeTag = `ContentType="` + docxMainContentType + `"`
)

// findDocxMainDocumentPath reads [Content_Types].xml for the main document part.
// Returns the path without leading slash, or "" if not declared.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	for _, override := range overridePart.FindAllString(string(data), -1) {
		if !strings.Contains(override, contentTypeTag) {
			continue
		}
		if m := partNameAttr.FindStringSubmatch(override); m != nil {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

// readZipFile returns the contents of name, or nil if the archive has no such entry.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// extractDOCX returns the text of a .docx file, one line per paragraph. Runs
// within a paragraph are concatenated as-is since Word splits words across runs.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", docPath, err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var paragraphs []string
	for _, p := range wParagraph.FindAllString(string(docXML), -1) {
		p = wBreak.ReplaceAllString(p, "<w:t> </w:t>")
		var b strings.Builder
		for _, run := range wText.FindAllStringSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(run[1]))
		}
		if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
