package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestNanoID_New(t *testing.T) {
	tests := []struct {
		name         string
		alphabet     string
		wantErr      error
		wantAlphabet string
	}{
		{name: "empty uses default", alphabet: "", wantAlphabet: defaultAlphabet},
		{name: "custom alphabet", alphabet: "ABCDEFGH", wantAlphabet: "ABCDEFGH"},
		{name: "alphabet too long", alphabet: strings.Repeat("a", 256), wantErr: ErrAlphabetTooLong},
		{name: "alphabet too short", alphabet: "abc", wantErr: ErrAlphabetTooShort},
		{name: "non ascii", alphabet: "abcdefgé", wantErr: ErrAlphabetNotASCII},
		{name: "invalid utf8", alphabet: "abcdefg\xff", wantErr: ErrAlphabetInvalidUTF8},
		{name: "max alphabet size", alphabet: strings.Repeat("a", 255), wantAlphabet: strings.Repeat("a", 255)},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			gen, err := NewNanoID(test.alphabet)

			// Assert
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("NewNanoID() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr == nil && gen.alphabet != test.wantAlphabet {
				t.Errorf("NewNanoID() alphabet = %q, want %q", gen.alphabet, test.wantAlphabet)
			}
		})
	}
}

func TestNanoID_MaskFor(t *testing.T) {
	tests := []struct {
		alphabetLen int
		want        byte
	}{
		{alphabetLen: 8, want: 7},
		{alphabetLen: 9, want: 15},
		{alphabetLen: 16, want: 15},
		{alphabetLen: 17, want: 31},
		{alphabetLen: 64, want: 63},
		{alphabetLen: 65, want: 127},
		{alphabetLen: 255, want: 255},
	}

	for _, test := range tests {
		if got := maskFor(test.alphabetLen); got != test.want {
			t.Errorf("maskFor(%d) = %d, want %d", test.alphabetLen, got, test.want)
		}
	}
}

// Requirement: ids have the requested length and use only alphabet characters
func TestNanoID_Generate(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		size     int
		wantLen  int
	}{
		{name: "default size", size: 0, wantLen: defaultIDSize},
		{name: "negative uses default", size: -3, wantLen: defaultIDSize},
		{name: "explicit size", size: 10, wantLen: 10},
		{name: "small alphabet", alphabet: "01234567", size: 64, wantLen: 64},
		{name: "non power of two alphabet", alphabet: "0123456789", size: 32, wantLen: 32},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			gen, err := NewNanoID(test.alphabet)
			if err != nil {
				t.Fatalf("NewNanoID() error = %v", err)
			}

			// Act
			id, err := gen.Generate(test.size)

			// Assert
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(id) != test.wantLen {
				t.Errorf("Generate() length = %d, want %d", len(id), test.wantLen)
			}
			for _, r := range id {
				if !strings.ContainsRune(gen.alphabet, r) {
					t.Fatalf("Generate() produced %q outside alphabet", r)
				}
			}
		})
	}
}

func TestNanoID_Unique(t *testing.T) {
	// Arrange
	gen, _ := NewNanoID("")
	seen := make(map[string]bool)

	// Act & Assert
	for i := 0; i < 1000; i++ {
		id, err := gen.Generate(0)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}
