package label

// Positions are in printer dots (203 dpi).
type zplLayout struct {
	x        int
	barcodeY int
	textY    int
	lineStep int
	splitAt  int // product names longer than this wrap onto a second line
}

type cpclLayout struct {
	x        int
	barcodeY int
	humanY   int
	nameY    int
	priceY   int
}

type layout struct {
	widthDots  int
	heightDots int
	zpl        zplLayout
	cpcl       cpclLayout
}

// Sizes without an entry here are declared but not printable.
var layouts = map[Size]layout{
	TwoByOne: {
		widthDots:  406,
		heightDots: 203,
		zpl:        zplLayout{x: 230, barcodeY: 100, textY: 200, lineStep: 30, splitAt: 14},
		cpcl:       cpclLayout{x: 230, barcodeY: 100, humanY: 155, nameY: 200, priceY: 230},
	},
	ThreeByTwo: {
		widthDots:  609,
		heightDots: 406,
		zpl:        zplLayout{x: 150, barcodeY: 50, textY: 150, lineStep: 15, splitAt: 9},
		cpcl:       cpclLayout{x: 150, barcodeY: 50, humanY: 60, nameY: 110, priceY: 140},
	},
}

// Fixed directive parameters shared by every size.
const (
	zplModuleWidth   = 1
	zplBarcodeHeight = 80
	zplFont          = 'D'
	zplFontHeight    = 20
	zplFontWidth     = 10

	cpclOffset        = 0
	cpclResolution    = 200
	cpclHeight        = 150
	cpclSymbology     = "128"
	cpclBarWidth      = 2
	cpclBarRatio      = 1
	cpclBarHeight     = 50
	cpclHumanFont     = 4
	cpclHumanSize     = 2
	cpclBodyFont      = 20
	cpclBodySize      = 10
	cpclDiagnosticGap = "     "
)

// Dots returns the printable area of a supported size
func (s Size) Dots() (width, height int, ok bool) {
	l, ok := layouts[s]
	return l.widthDots, l.heightDots, ok
}

// Origin returns the left edge and first body line of a supported size
// in the given language, used to place on-screen previews.
func (s Size) Origin(lang Language) (x, y, step int, ok bool) {
	l, ok := layouts[s]
	if !ok {
		return 0, 0, 0, false
	}
	if lang == CPCL {
		return l.cpcl.x, l.cpcl.nameY, l.cpcl.priceY - l.cpcl.nameY, true
	}
	return l.zpl.x, l.zpl.textY, l.zpl.lineStep, true
}

// Barcode returns where the barcode symbol starts and how tall it is
func (s Size) Barcode(lang Language) (x, y, height int, ok bool) {
	l, ok := layouts[s]
	if !ok {
		return 0, 0, 0, false
	}
	if lang == CPCL {
		return l.cpcl.x, l.cpcl.barcodeY, cpclBarHeight, true
	}
	return l.zpl.x, l.zpl.barcodeY, zplBarcodeHeight, true
}
