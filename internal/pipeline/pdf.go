package pipeline

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

const (
	pdfHeader = "%PDF-"
	pdfEOF    = "%%EOF"
	// pdfTrailerWindow is how far from the end %%EOF must appear.
	pdfTrailerWindow = 2048
	// maxInflatedStream bounds a single decompressed content stream.
	maxInflatedStream = 32 << 20
	// tjSpaceThreshold is the TJ kerning (thousandths of an em) read as a word gap.
	tjSpaceThreshold = -200
)

const minPrintableRatio = 0.7

var (
	pdfPageRe  = regexp.MustCompile(`/Type\s*/Page\b`)
	pdfInfoRes = map[string]*regexp.Regexp{
		"Title":  regexp.MustCompile(`/Title\s*\(`),
		"Author": regexp.MustCompile(`/Author\s*\(`),
	}
)

// extractPDF recovers text drawn with literal or hex string operators. It
// understands uncompressed and Flate-compressed content streams; other
// filters and font encodings are skipped.
func extractPDF(body []byte) (string, Metadata, error) {
	if !bytes.HasPrefix(body, []byte(pdfHeader)) {
		return "", Metadata{}, &domain.ExtractionError{
			Reason: domain.ExtractionCorruptDocument,
			Err:    errors.New("missing %PDF- header"),
		}
	}
	tail := body[max(0, len(body)-pdfTrailerWindow):]
	if !bytes.Contains(tail, []byte(pdfEOF)) {
		return "", Metadata{}, &domain.ExtractionError{
			Reason: domain.ExtractionCorruptDocument,
			Err:    errors.New("truncated document: no %%EOF marker"),
		}
	}

	var b strings.Builder
	for _, stream := range pdfStreams(body) {
		if t := showText(stream); t != "" {
			b.WriteString(t)
			b.WriteByte('\n')
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", Metadata{}, &domain.ExtractionError{Reason: domain.ExtractionUnsupportedFormat, Err: errNoText}
	}

	meta := Metadata{
		Method: MethodPDF,
		Pages:  len(pdfPageRe.FindAllIndex(body, -1)),
		Title:  pdfInfo(body, "Title"),
		Author: pdfInfo(body, "Author"),
	}
	return text, meta, nil
}

func pdfInfo(body []byte, key string) string {
	loc := pdfInfoRes[key].FindIndex(body)
	if loc == nil {
		return ""
	}
	s, _ := readLiteral(body[loc[1]-1:])
	return strings.TrimSpace(s)
}

// pdfStreams returns the decoded data of every stream whose filter is
// absent or FlateDecode.
func pdfStreams(body []byte) [][]byte {
	const (
		kwStream    = "stream"
		kwEndStream = "endstream"
	)
	out := make([][]byte, 0)
	pos := 0
	for pos < len(body) {
		i := bytes.Index(body[pos:], []byte(kwStream))
		if i < 0 {
			break
		}
		start := pos + i
		if start >= 3 && string(body[start-3:start]) == "end" {
			pos = start + len(kwStream)
			continue
		}

		dataStart := start + len(kwStream)
		if dataStart < len(body) && body[dataStart] == '\r' {
			dataStart++
		}
		if dataStart >= len(body) || body[dataStart] != '\n' {
			pos = dataStart
			continue
		}
		dataStart++

		end := bytes.Index(body[dataStart:], []byte(kwEndStream))
		if end < 0 {
			break
		}
		data := trimEOL(body[dataStart : dataStart+end])

		dict := body[pos:start]
		if j := bytes.LastIndex(dict, []byte("obj")); j >= 0 {
			dict = dict[j:]
		}
		pos = dataStart + end + len(kwEndStream)

		switch {
		case bytes.Contains(dict, []byte("/FlateDecode")):
			inflated, err := inflate(data)
			if err != nil {
				continue
			}
			data = inflated
		case bytes.Contains(dict, []byte("/Filter")):
			continue
		}
		out = append(out, data)
	}
	return out
}

// trimEOL drops the single end-of-line marker that precedes endstream.
func trimEOL(b []byte) []byte {
	switch {
	case bytes.HasSuffix(b, []byte("\r\n")):
		return b[:len(b)-2]
	case bytes.HasSuffix(b, []byte("\n")), bytes.HasSuffix(b, []byte("\r")):
		return b[:len(b)-1]
	}
	return b
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflatedStream))
}

// showText walks a content stream and returns the strings shown between
// BT and ET.
func showText(content []byte) string {
	var b strings.Builder
	inText := false
	inArray := false

	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case c == '(':
			s, n := readLiteral(content[i:])
			if inText {
				b.WriteString(s)
			}
			i += n
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			s, n := readHexString(content[i:])
			if inText {
				b.WriteString(s)
			}
			i += n
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case inArray && (c == '-' || c == '.' || (c >= '0' && c <= '9')):
			j := i + 1
			for j < len(content) && (content[j] == '.' || (content[j] >= '0' && content[j] <= '9')) {
				j++
			}
			if v, err := strconv.ParseFloat(string(content[i:j]), 64); err == nil && v <= tjSpaceThreshold {
				b.WriteByte(' ')
			}
			i = j
		case isOperatorByte(c):
			j := i + 1
			for j < len(content) && isOperatorByte(content[j]) {
				j++
			}
			switch string(content[i:j]) {
			case "BT":
				inText = true
			case "ET":
				inText = false
				b.WriteByte('\n')
			case "Td", "TD", "T*", "Tm", "'", `"`:
				if inText {
					b.WriteByte(' ')
				}
			}
			i = j
		default:
			i++
		}
	}
	return collapseSpace(b.String())
}

func isOperatorByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*' || c == '\'' || c == '"'
}

// readLiteral decodes a balanced (...) string starting at b[0] and returns
// it with the number of bytes consumed.
func readLiteral(b []byte) (string, int) {
	out := make([]byte, 0, len(b))
	depth := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				return decodePDFString(out), len(b)
			}
			i++
			switch e := b[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b', 'f':
			case '\r':
				if i+1 < len(b) && b[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
					out = append(out, byte(v))
					i = j - 1
					continue
				}
				out = append(out, e)
			}
		case '(':
			depth++
			if depth > 1 {
				out = append(out, c)
			}
		case ')':
			depth--
			if depth == 0 {
				return decodePDFString(out), i + 1
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return decodePDFString(out), len(b)
}

func readHexString(b []byte) (string, int) {
	end := bytes.IndexByte(b, '>')
	if end < 0 {
		return "", len(b)
	}
	digits := make([]byte, 0, end)
	for _, c := range b[1:end] {
		if !unicode.IsSpace(rune(c)) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(raw, digits); err != nil {
		return "", end + 1
	}
	return decodePDFString(raw), end + 1
}

// decodePDFString reads UTF-16BE strings marked with a BOM and treats the
// rest as Latin-1. Strings that are mostly unprintable, typically glyph ids
// of embedded fonts, decode to "".
func decodePDFString(raw []byte) string {
	var (
		decoded []byte
		err     error
	)
	if bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		decoded, err = xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM).NewDecoder().Bytes(raw)
	} else {
		decoded, err = charmap.ISO8859_1.NewDecoder().Bytes(raw)
	}
	if err != nil {
		return ""
	}

	s := string(decoded)
	total, printable := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 || float64(printable)/float64(total) < minPrintableRatio {
		return ""
	}
	return s
}
