package core

import (
	"testing"
)

func TestDetectBOM(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want BOMKind
	}{
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, BOMUTF8},
		{"utf16 le bom", []byte{0xFF, 0xFE, 'a', 0}, BOMUTF16LE},
		{"utf16 be bom", []byte{0xFE, 0xFF, 0, 'a'}, BOMUTF16BE},
		{"no bom", []byte("name;email"), BOMNone},
		{"empty", nil, BOMNone},
		{"partial utf8 bom", []byte{0xEF, 0xBB}, BOMNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectBOM(tt.data); got != tt.want {
				t.Errorf("DetectBOM() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name         string
		input        []byte
		wantText     string
		wantEncoding string
	}{
		{
			name:         "plain ascii",
			input:        []byte("a;b\n1;2\n"),
			wantText:     "a;b\n1;2\n",
			wantEncoding: "UTF-8",
		},
		{
			name:         "utf8 with accents",
			input:        []byte("função;setor\n"),
			wantText:     "função;setor\n",
			wantEncoding: "UTF-8",
		},
		{
			name:         "utf8 bom stripped",
			input:        append([]byte{0xEF, 0xBB, 0xBF}, []byte("nome;email")...),
			wantText:     "nome;email",
			wantEncoding: "UTF-8",
		},
		{
			name:         "utf16 le with bom",
			input:        []byte{0xFF, 0xFE, 'o', 0, 'k', 0},
			wantText:     "ok",
			wantEncoding: "UTF-16LE",
		},
		{
			name:         "utf16 be with bom",
			input:        []byte{0xFE, 0xFF, 0, 'o', 0, 'k'},
			wantText:     "ok",
			wantEncoding: "UTF-16BE",
		},
		{
			name: "windows-1252 fallback",
			// "Função" with ç=0xE7 and ã=0xE3
			input:        []byte{'F', 'u', 'n', 0xE7, 0xE3, 'o'},
			wantText:     "Função",
			wantEncoding: "Windows-1252",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.input)
			if err != nil {
				t.Fatalf("DecodeText() error = %v", err)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Encoding != tt.wantEncoding {
				t.Errorf("Encoding = %q, want %q", got.Encoding, tt.wantEncoding)
			}
		})
	}
}

func TestIsAllASCII(t *testing.T) {
	if !isAllASCII([]byte("plain text, 123")) {
		t.Error("expected ASCII input to be detected")
	}
	if isAllASCII([]byte("José")) {
		t.Error("expected non-ASCII input to be detected")
	}
}
