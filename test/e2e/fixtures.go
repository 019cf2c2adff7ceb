package e2e

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// SupportedFileExtensions is the list of file extensions used in E2E file-based tests.
// PDF is not generated here; it has no minimal form with extractable text.
var SupportedFileExtensions = []string{".txt", ".md", ".srt", ".vtt", ".docx"}

// WriteMinimalFile returns the bytes of a minimal file of the given extension
// carrying text, one line per caption cue or paragraph.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	lines := strings.Split(text, "\n")
	switch ext {
	case ".txt", ".md":
		return []byte(text), nil
	case ".srt":
		return minimalSRT(lines), nil
	case ".vtt":
		return minimalVTT(lines), nil
	case ".docx":
		return minimalDocx(lines)
	default:
		return nil, fmt.Errorf("unsupported fixture extension %q", ext)
	}
}

func minimalSRT(lines []string) []byte {
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(i*5), srtTime(i*5+5), line)
	}
	return []byte(b.String())
}

func minimalVTT(lines []string) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, line := range lines {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", vttTime(i*5), vttTime(i*5+5), line)
	}
	return []byte(b.String())
}

func srtTime(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d,000", sec/3600, sec/60%60, sec%60)
}

func vttTime(sec int) string {
	return fmt.Sprintf("%02d:%02d.000", sec/60, sec%60)
}

func minimalDocx(lines []string) ([]byte, error) {
	var body bytes.Buffer
	for _, line := range lines {
		body.WriteString("<w:p><w:r><w:t>")
		if err := xml.EscapeText(&body, []byte(line)); err != nil {
			return nil, err
		}
		body.WriteString("</w:t></w:r></w:p>")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	if _, err := fw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CaptionDuration is the end time in seconds WriteMinimalFile gives a caption file of n lines.
func CaptionDuration(n int) float64 {
	return float64(n * 5)
}
