package label

import (
	"fmt"
	"strings"
)

// Record holds the product fields printed on a label
type Record struct {
	Barcode        string
	ProductType    string
	ProductName    string
	UnitOfMeasure  string
	FormattedPrice string
}

// SampleRecord is the demo product used for test prints
var SampleRecord = Record{
	Barcode:        "1234567890",
	ProductType:    "Category 01",
	ProductName:    "Product 01",
	UnitOfMeasure:  "Gram",
	FormattedPrice: "$50.00",
}

// Size selects the physical label media
type Size int

const (
	TwoByOne Size = iota
	ThreeByTwo
	FourByTwo
	FourByThree
	FourBySix
)

// AllSizes lists every declared size, supported or not
var AllSizes = []Size{TwoByOne, ThreeByTwo, FourByTwo, FourByThree, FourBySix}

var sizeNames = map[Size]string{
	TwoByOne:    "2x1",
	ThreeByTwo:  "3x2",
	FourByTwo:   "4x2",
	FourByThree: "4x3",
	FourBySix:   "4x6",
}

func (s Size) String() string {
	if name, ok := sizeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Size(%d)", int(s))
}

// Supported reports whether the encoder has a layout for s
func (s Size) Supported() bool {
	_, ok := layouts[s]
	return ok
}

// SupportedSizes returns the sizes the encoder can produce
func SupportedSizes() []Size {
	var sizes []Size
	for _, s := range AllSizes {
		if s.Supported() {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// ParseSize accepts "2x1" style names and the enum names ("TwoByOne")
func ParseSize(s string) (Size, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for size, name := range sizeNames {
		if v == name || v == strings.ToLower(enumName(size)) {
			return size, nil
		}
	}
	return 0, fmt.Errorf("unknown label size %q", s)
}

func enumName(s Size) string {
	switch s {
	case TwoByOne:
		return "TwoByOne"
	case ThreeByTwo:
		return "ThreeByTwo"
	case FourByTwo:
		return "FourByTwo"
	case FourByThree:
		return "FourByThree"
	case FourBySix:
		return "FourBySix"
	}
	return ""
}

// Language is the printer control language
type Language int

const (
	ZPL Language = iota
	CPCL
)

func (l Language) String() string {
	switch l {
	case ZPL:
		return "ZPL"
	case CPCL:
		return "CPCL"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// ParseLanguage is case-insensitive
func ParseLanguage(s string) (Language, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ZPL":
		return ZPL, nil
	case "CPCL":
		return CPCL, nil
	}
	return 0, fmt.Errorf("unknown printer language %q", s)
}
