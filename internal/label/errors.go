package label

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedSize     = errors.New("unsupported label size")
	ErrUnsupportedLanguage = errors.New("unsupported printer language")
	ErrInvalidCopies       = errors.New("copies must be at least 1")
	ErrEncoding            = errors.New("label content cannot be encoded")
)

// EncodingError reports a field that the target language cannot carry
type EncodingError struct {
	Field  string
	Offset int
	Rune   rune
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%v: %s has %q at offset %d", ErrEncoding, e.Field, e.Rune, e.Offset)
}

func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}
