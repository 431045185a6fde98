package crypto

import (
	"crypto/rand"
	"errors"
	"math"
	"unicode/utf8"
)

const (
	defaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	defaultIDSize   = 21
	maxAlphabetSize = 255
	minAlphabetSize = 8
)

var (
	ErrAlphabetTooLong     = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort    = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetInvalidUTF8 = errors.New("alphabet must contain valid UTF-8")
	ErrAlphabetNotASCII    = errors.New("alphabet must contain only ASCII characters")
)

// NanoID generates short random ids, used as X-Request-ID values on REST calls.
type NanoID struct {
	alphabet string
	mask     byte
	size     int
}

// smallest 2^n-1 covering every alphabet index
func maskFor(alphabetLen int) byte {
	mask := 1
	for mask < alphabetLen-1 {
		mask = mask<<1 | 1
	}
	return byte(mask)
}

// NewNanoID returns a generator over alphabet, or the default URL-safe
// alphabet when alphabet is empty.
func NewNanoID(alphabet string) (*NanoID, error) {
	if alphabet == "" {
		alphabet = defaultAlphabet
	}

	if !utf8.ValidString(alphabet) {
		return nil, ErrAlphabetInvalidUTF8
	}
	// Generate indexes by byte
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}
	if len(alphabet) > maxAlphabetSize {
		return nil, ErrAlphabetTooLong
	}
	if len(alphabet) < minAlphabetSize {
		return nil, ErrAlphabetTooShort
	}

	return &NanoID{
		alphabet: alphabet,
		mask:     maskFor(len(alphabet)),
		size:     defaultIDSize,
	}, nil
}

// Generate returns an id of size characters (the default size when <= 0).
func (n *NanoID) Generate(size int) (string, error) {
	if size <= 0 {
		size = n.size
	}

	step := int(math.Ceil(1.6 * float64(int(n.mask)*size) / float64(len(n.alphabet))))
	if step < 1 {
		step = 1
	}

	id := make([]byte, 0, size)
	buf := make([]byte, step)

	for len(id) < size {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := b & n.mask
			if int(idx) < len(n.alphabet) {
				id = append(id, n.alphabet[idx])
				if len(id) == size {
					break
				}
			}
		}
	}

	return string(id), nil
}
