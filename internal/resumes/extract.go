// Package resumes extracts plain text from candidate resume PDFs.
//
// Extraction is best effort: decoded page content streams are scanned for
// text-showing operators and their string operands. Resumes produced by
// common word processors extract well; exotic font encodings degrade to
// partial text.
package resumes

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ErrNoText is returned when a PDF yields no extractable text at all.
var ErrNoText = errors.New("no extractable text in pdf")

// Extract returns the plain text of all pages of the PDF at path.
func Extract(path string) (string, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf %q: %w", path, err)
	}

	var pages []string
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			return "", fmt.Errorf("extract page %d content: %w", page, err)
		}
		if r == nil {
			continue
		}

		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read page %d content: %w", page, err)
		}

		if text := contentText(content); text != "" {
			pages = append(pages, text)
		}
	}

	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		return "", fmt.Errorf("%q: %w", path, ErrNoText)
	}

	return text, nil
}

// contentText scans a decoded content stream and collects the operands of the
// text-showing operators Tj, TJ, ' and ". Each show operation becomes one
// output line.
func contentText(content []byte) string {
	var out strings.Builder
	var pending strings.Builder

	flush := func() {
		line := strings.TrimSpace(pending.String())
		pending.Reset()
		if line == "" {
			return
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	i := 0
	for i < len(content) {
		switch c := content[i]; {
		case c == '(':
			text, next := readLiteralString(content, i)
			pending.WriteString(text)
			i = next
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				// Dictionary start, not a hex string.
				i += 2
				continue
			}
			text, next := readHexString(content, i)
			pending.WriteString(text)
			i = next
		case c == '%':
			for i < len(content) && content[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			flush()
			i++
		case isRegular(c):
			token, next := readToken(content, i)
			if token == "Tj" || token == "TJ" {
				flush()
			}
			i = next
		default:
			i++
		}
	}

	flush()
	return strings.TrimRight(out.String(), "\n")
}

// readLiteralString decodes a PDF literal string starting at the opening
// parenthesis, honoring escapes and balanced nested parentheses.
func readLiteralString(content []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0

	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 >= len(content) {
				return b.String(), i + 1
			}
			esc := content[i+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
				// Ignored control characters.
			case '(', ')', '\\':
				b.WriteByte(esc)
			case '\n':
				// Line continuation.
			default:
				if esc >= '0' && esc <= '7' {
					value, consumed := readOctal(content, i+1)
					if value >= 0x20 && value < 0x7f {
						b.WriteByte(byte(value))
					}
					i += consumed - 1
				}
			}
			i += 2
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), i
}

func readOctal(content []byte, start int) (value, consumed int) {
	for consumed < 3 && start+consumed < len(content) {
		c := content[start+consumed]
		if c < '0' || c > '7' {
			break
		}
		value = value*8 + int(c-'0')
		consumed++
	}
	return value, consumed
}

// readHexString decodes a hex string starting at '<'. CID-encoded strings
// decode to unprintable bytes and are dropped rather than emitted as noise.
func readHexString(content []byte, start int) (string, int) {
	var digits []byte

	i := start + 1
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(content) {
		i++
	}

	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}

	var b strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		value := hexValue(digits[j])<<4 | hexValue(digits[j+1])
		if value < 0x20 || value >= 0x7f {
			return "", i
		}
		b.WriteByte(byte(value))
	}

	return b.String(), i
}

func readToken(content []byte, start int) (string, int) {
	i := start
	for i < len(content) && isRegular(content[i]) {
		i++
	}
	return string(content[start:i]), i
}

func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return false
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
