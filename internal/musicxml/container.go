package musicxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// maxContainerDepth is how many nested containers Extract unwraps below
	// the outermost one.
	maxContainerDepth = 1

	maxPayloadBytes = 64 << 20
	containerPath   = "META-INF/container.xml"
)

var (
	zipMagic = []byte("PK")
	pdfMagic = []byte("%PDF")

	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// conventionalPayloads are tried when a container has no usable root-file
// pointer.
var conventionalPayloads = []string{"score.xml", "musicXML.xml"}

// IsCompressed reports whether data starts with the zip signature.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Extract returns the UTF-8 MusicXML text carried by data. Plain XML is
// returned as-is (minus any byte order mark); zip containers are unwrapped
// via their root-file pointer or filename conventions.
func Extract(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{Reason: "empty input"}
	}
	return unwrap(data, 0)
}

func unwrap(data []byte, depth int) ([]byte, error) {
	switch {
	case isPDF(data):
		return nil, &FormatError{Reason: "input is a PDF document"}
	case IsCompressed(data):
		if depth > maxContainerDepth {
			return nil, &ExtractionError{Reason: fmt.Sprintf("containers nested deeper than %d level", maxContainerDepth)}
		}
		payload, err := openContainer(data)
		if err != nil {
			return nil, err
		}
		return unwrap(payload, depth+1)
	default:
		return toUTF8(data)
	}
}

// isPDF looks for the PDF signature after any UTF-8 byte order mark and
// leading whitespace.
func isPDF(data []byte) bool {
	head := bytes.TrimLeft(bytes.TrimPrefix(data, bomUTF8), " \t\r\n")
	return bytes.HasPrefix(head, pdfMagic)
}

// openContainer resolves and reads the payload entry of a zip container.
func openContainer(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Reason: "corrupt container", Err: err}
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	if f, ok := entries[containerPath]; ok {
		if p := rootFilePath(f); p != "" {
			if target, ok := entries[p]; ok {
				return readEntry(target)
			}
		}
	}

	for _, name := range conventionalPayloads {
		if f, ok := entries[name]; ok {
			return readEntry(f)
		}
	}

	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") || strings.HasPrefix(f.Name, "META-INF") {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".xml") {
			return readEntry(f)
		}
	}

	return nil, &ExtractionError{Reason: "no MusicXML payload in container"}
}

// rootFilePath reads the manifest and returns the score's full-path. The
// first root file with a MusicXML (or unspecified) media type wins.
func rootFilePath(f *zip.File) string {
	data, err := readEntry(f)
	if err != nil {
		return ""
	}
	text, err := toUTF8(data)
	if err != nil {
		return ""
	}
	root, err := parseTree(text)
	if err != nil {
		return ""
	}
	var fallback string
	for _, rf := range root.findAll("rootfile") {
		p := rf.attr("full-path")
		if p == "" {
			continue
		}
		mt := rf.attr("media-type")
		if mt == "" || strings.Contains(mt, "musicxml") {
			return p
		}
		if fallback == "" {
			fallback = p
		}
	}
	return fallback
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &ExtractionError{Reason: "open " + f.Name, Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPayloadBytes+1))
	if err != nil {
		return nil, &ExtractionError{Reason: "read " + f.Name, Err: err}
	}
	if len(data) > maxPayloadBytes {
		return nil, &ExtractionError{Reason: f.Name + " exceeds payload size limit"}
	}
	return data, nil
}

// toUTF8 strips a UTF-8 byte order mark and transcodes UTF-16 payloads.
func toUTF8(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], nil
	case bytes.HasPrefix(data, bomUTF16BE), bytes.HasPrefix(data, bomUTF16LE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, &FormatError{Reason: "invalid UTF-16 payload", Err: err}
		}
		return out, nil
	default:
		return data, nil
	}
}
