package label

import (
	"fmt"
	"unicode/utf8"

	"zebra-label/internal/cpcl"
	"zebra-label/internal/zpl"
)

// Default diagnostic tokens appended to the CPCL price line.
const (
	DefaultCPCLMin = "MIN:-6"
	DefaultCPCLMax = "MAX: 100"
)

// Options tune the generated command streams
type Options struct {
	// DuplicateEndMarker appends a second ^XZ to ZPL labels for hosts whose
	// link drops the final end marker.
	DuplicateEndMarker bool
	CPCLMin            string
	CPCLMax            string
}

func DefaultOptions() Options {
	return Options{
		CPCLMin: DefaultCPCLMin,
		CPCLMax: DefaultCPCLMax,
	}
}

// Encoder turns label records into printer command streams.
// It is stateless and safe for concurrent use.
type Encoder struct {
	opts Options
}

// NewEncoder returns an encoder for opts. Empty CPCL tokens fall back to
// DefaultCPCLMin and DefaultCPCLMax.
func NewEncoder(opts Options) *Encoder {
	if opts.CPCLMin == "" {
		opts.CPCLMin = DefaultCPCLMin
	}
	if opts.CPCLMax == "" {
		opts.CPCLMax = DefaultCPCLMax
	}
	return &Encoder{opts: opts}
}

func (e *Encoder) Options() Options {
	return e.opts
}

// Validate checks the parts of a print request that do not depend on the
// printer: the label size and the copy count.
func Validate(size Size, copies int) error {
	if _, ok := layouts[size]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedSize, size)
	}
	if copies < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCopies, copies)
	}
	return nil
}

// Encode builds the complete command buffer for copies labels of rec.
func (e *Encoder) Encode(rec Record, size Size, lang Language, copies int) ([]byte, error) {
	if err := Validate(size, copies); err != nil {
		return nil, err
	}
	l := layouts[size]

	switch lang {
	case ZPL:
		return e.encodeZPL(rec, l.zpl, copies)
	case CPCL:
		return e.encodeCPCL(rec, l.cpcl, copies)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

// BodyLines returns the text lines printed under the barcode.
func (e *Encoder) BodyLines(rec Record, size Size, lang Language) ([]string, error) {
	l, ok := layouts[size]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSize, size)
	}

	switch lang {
	case ZPL:
		if err := checkZPL(rec); err != nil {
			return nil, err
		}
		return zplBody(rec, l.zpl.splitAt), nil
	case CPCL:
		if err := checkCPCL(rec); err != nil {
			return nil, err
		}
		return e.cpclBody(rec), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

func (e *Encoder) encodeZPL(rec Record, l zplLayout, copies int) ([]byte, error) {
	if err := checkZPL(rec); err != nil {
		return nil, err
	}

	cmd := zpl.New().Start().
		FieldOrigin(l.x, l.barcodeY).
		BarDefaults(zplModuleWidth).
		Code39(false, zplBarcodeHeight, true, false).
		Font(zplFont, zplFontHeight, zplFontWidth).
		FieldData(rec.Barcode)

	for i, line := range zplBody(rec, l.splitAt) {
		cmd.FieldOrigin(l.x, l.textY+i*l.lineStep).
			Font(zplFont, zplFontHeight, zplFontWidth).
			FieldData(line)
	}

	cmd.PrintQuantity(copies).End()
	if e.opts.DuplicateEndMarker {
		cmd.End()
	}
	return cmd.Bytes(), nil
}

// zplBody splits the product name at splitAt characters. Callers must have
// validated rec as ASCII so byte offsets are character offsets.
func zplBody(rec Record, splitAt int) []string {
	price := priceLine(rec)
	name := rec.ProductName
	if len(name) <= splitAt {
		return []string{nameLine(rec.ProductType, name), price}
	}
	return []string{
		nameLine(rec.ProductType, name[:splitAt]),
		name[splitAt:],
		price,
	}
}

// encodeCPCL never wraps the product name; long names run off the
// label edge exactly as the printer renders them.
func (e *Encoder) encodeCPCL(rec Record, l cpclLayout, copies int) ([]byte, error) {
	if err := checkCPCL(rec); err != nil {
		return nil, err
	}

	body := e.cpclBody(rec)
	cmd := cpcl.New().
		Start(cpclOffset, cpclResolution, cpclResolution, cpclHeight, copies).
		Barcode(cpclSymbology, cpclBarWidth, cpclBarRatio, cpclBarHeight, l.x, l.barcodeY, rec.Barcode).
		Text(cpclHumanFont, cpclHumanSize, l.x, l.humanY, rec.Barcode).
		Text(cpclBodyFont, cpclBodySize, l.x, l.nameY, body[0]).
		Text(cpclBodyFont, cpclBodySize, l.x, l.priceY, body[1])
	return cmd.Bytes(), nil
}

func (e *Encoder) cpclBody(rec Record) []string {
	return []string{
		nameLine(rec.ProductType, rec.ProductName),
		priceLine(rec) + cpclDiagnosticGap + e.opts.CPCLMin + e.opts.CPCLMax,
	}
}

func nameLine(productType, name string) string {
	return fmt.Sprintf("(%s) %s", productType, name)
}

func priceLine(rec Record) string {
	return fmt.Sprintf("%s (%s)", rec.FormattedPrice, rec.UnitOfMeasure)
}

func fields(rec Record) []struct{ name, value string } {
	return []struct{ name, value string }{
		{"barcode", rec.Barcode},
		{"product type", rec.ProductType},
		{"product name", rec.ProductName},
		{"unit of measure", rec.UnitOfMeasure},
		{"price", rec.FormattedPrice},
	}
}

// checkZPL accepts printable ASCII only. The caret and tilde are ZPL
// command prefixes and would start a new directive inside ^FD.
func checkZPL(rec Record) error {
	for _, f := range fields(rec) {
		for i := 0; i < len(f.value); i++ {
			b := f.value[i]
			if b < 0x20 || b > 0x7e || b == '^' || b == '~' {
				r, _ := utf8.DecodeRuneInString(f.value[i:])
				return &EncodingError{Field: f.name, Offset: i, Rune: r}
			}
		}
	}
	return nil
}

// checkCPCL accepts any valid UTF-8 without line breaks, which would
// end the command line early. An encoded U+FFFD is valid text; only a
// one-byte RuneError marks an invalid sequence.
func checkCPCL(rec Record) error {
	for _, f := range fields(rec) {
		for i, r := range f.value {
			invalid := false
			if r == utf8.RuneError {
				_, width := utf8.DecodeRuneInString(f.value[i:])
				invalid = width == 1
			}
			if invalid || r == '\n' || r == '\r' {
				return &EncodingError{Field: f.name, Offset: i, Rune: r}
			}
		}
	}
	return nil
}
