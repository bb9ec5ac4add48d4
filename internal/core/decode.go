package core

// decode.go turns uploaded bytes into UTF-8 text before parsing.
//
// Spreadsheet exports arrive in whatever encoding the operator's editor
// chose. The common cases are handled here:
//
//   - UTF-8 with or without a byte order mark
//   - UTF-16 LE/BE with a byte order mark (Excel "Unicode text")
//   - Windows-1252 (legacy "CSV (Windows)" exports), detected as
//     "not valid UTF-8 and no BOM"

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// BOMKind identifies the byte order mark found at offset 0.
type BOMKind string

const (
	BOMNone    BOMKind = ""
	BOMUTF8    BOMKind = "UTF-8"
	BOMUTF16LE BOMKind = "UTF-16LE"
	BOMUTF16BE BOMKind = "UTF-16BE"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectBOM reports which byte order mark, if any, starts data.
func DetectBOM(data []byte) BOMKind {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return BOMUTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		return BOMUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return BOMUTF16BE
	default:
		return BOMNone
	}
}

// DecodedText is file content converted to UTF-8.
type DecodedText struct {
	Text     string
	Encoding string // "UTF-8", "UTF-16LE", "UTF-16BE" or "Windows-1252"
	BOM      BOMKind
}

// DecodeText converts raw file bytes to UTF-8 text without a BOM.
func DecodeText(data []byte) (DecodedText, error) {
	bom := DetectBOM(data)
	if bom != BOMNone {
		// BOMOverride switches to the encoding the mark announces and strips it.
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return DecodedText{}, fmt.Errorf("decode %s text: %w", bom, err)
		}
		return DecodedText{Text: string(out), Encoding: string(bom), BOM: bom}, nil
	}

	if isAllASCII(data) || utf8.Valid(data) {
		return DecodedText{Text: string(data), Encoding: "UTF-8"}, nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return DecodedText{}, fmt.Errorf("decode Windows-1252 text: %w", err)
	}
	return DecodedText{Text: string(out), Encoding: "Windows-1252"}, nil
}

// isAllASCII returns true if all bytes are ASCII (< 128).
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
