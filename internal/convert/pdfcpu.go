// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// kernSpace is the TJ displacement, in thousandths of an em, beyond which a
// gap between two strings is read as a word break.
const kernSpace = 200

// PDFCPUConverter extracts text in process by parsing each page's content
// stream with pdfcpu. It reads the operands of the text-showing operators
// and does not consult font encodings, so documents set in composite fonts
// come out poorly; the markitdown backend handles those.
type PDFCPUConverter struct{}

// NewPDFCPUConverter disables pdfcpu's on-disk configuration directory and
// returns the converter.
func NewPDFCPUConverter() *PDFCPUConverter {
	api.DisableConfigDir()
	return &PDFCPUConverter{}
}

// Convert returns the text of every page, pages separated by a blank line.
func (c *PDFCPUConverter) Convert(ctx context.Context, pdf []byte) (text string, err error) {
	// pdfcpu panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu: malformed PDF: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if t := pageText(pctx, pageNr); t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return normalizeSpace(extractText(data))
}

// textWriter joins shown strings, inserting at most one space at each
// positioning operator.
type textWriter struct {
	b       strings.Builder
	pending bool
}

func (w *textWriter) show(s string) {
	if s == "" {
		return
	}
	if w.pending && w.b.Len() > 0 {
		w.b.WriteByte(' ')
	}
	w.pending = false
	w.b.WriteString(s)
}

func (w *textWriter) space() { w.pending = true }

// extractText scans a decoded content stream and returns the operands of
// Tj, TJ, ' and " in order.
func extractText(content []byte) string {
	var (
		w        textWriter
		operands []string
		inArray  bool
	)
	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case isWhite(c):
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(content[i:])
			operands = append(operands, s)
			i += n
		case c == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case c == '<':
			s, n := readHex(content[i:])
			operands = append(operands, s)
			i += n
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '>' || c == '{' || c == '}' || c == ')':
			i++
		case c == '/':
			i++
			for i < len(content) && !isWhite(content[i]) && !isDelim(content[i]) {
				i++
			}
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(content) && (content[i] == '.' || (content[i] >= '0' && content[i] <= '9')) {
				i++
			}
			if inArray && isWideGap(content[start:i]) {
				operands = append(operands, " ")
			}
		default:
			start := i
			for i < len(content) && !isWhite(content[i]) && !isDelim(content[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			switch op := string(content[start:i]); op {
			case "Tj", "TJ":
				w.show(strings.Join(operands, ""))
			case "'", `"`:
				w.space()
				w.show(strings.Join(operands, ""))
			case "BT", "ET", "Td", "TD", "Tm", "T*":
				w.space()
			case "ID":
				i = skipInlineImage(content, i)
			}
			operands = operands[:0]
		}
	}
	return w.b.String()
}

// readLiteral decodes a (...) string with balanced parentheses and
// backslash escapes. It returns the text and the bytes consumed.
func readLiteral(b []byte) (string, int) {
	var out []byte
	depth := 0
	i := 0
	for ; i < len(b); i++ {
		c := b[i]
		switch c {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return latin1(out), i + 1
			}
		case '\\':
			i++
			if i >= len(b) {
				return latin1(out), i
			}
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
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(b) && b[i+1] >= '0' && b[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(b[i]-'0')
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			continue
		}
		out = append(out, c)
	}
	return latin1(out), i
}

// readHex decodes a <...> string. An odd final digit is padded with zero.
func readHex(b []byte) (string, int) {
	var out []byte
	hi, half := byte(0), false
	i := 1
	for ; i < len(b) && b[i] != '>'; i++ {
		v, ok := hexVal(b[i])
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	if i < len(b) {
		i++
	}
	return latin1(out), i
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// latin1 maps single-byte codes to runes so the result is valid UTF-8.
func latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func isWideGap(num []byte) bool {
	v, err := strconv.ParseFloat(string(num), 64)
	return err == nil && v <= -kernSpace
}

// skipInlineImage returns the offset just past the EI that closes inline
// image data starting at i.
func skipInlineImage(content []byte, i int) int {
	for j := i; j+2 < len(content); j++ {
		if isWhite(content[j]) && content[j+1] == 'E' && content[j+2] == 'I' &&
			(j+3 == len(content) || isWhite(content[j+3])) {
			return j + 3
		}
	}
	return len(content)
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// normalizeSpace collapses whitespace runs to one space and drops
// non-printable runes.
func normalizeSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
