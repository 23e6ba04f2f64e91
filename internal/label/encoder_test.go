package label

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEncoder() *Encoder {
	return NewEncoder(DefaultOptions())
}

func withName(name string) Record {
	rec := SampleRecord
	rec.ProductName = name
	return rec
}

func TestEncodeZPLTwoByOne(t *testing.T) {
	out, err := newEncoder().Encode(SampleRecord, TwoByOne, ZPL, 2)
	require.NoError(t, err)

	want := "^XA" +
		"^FO230,100^BY1^B3N,N,80,Y,N^ADN,20,10^FD1234567890^FS" +
		"^FO230,200^ADN,20,10^FD(Category 01) Product 01^FS" +
		"^FO230,230^ADN,20,10^FD$50.00 (Gram)^FS" +
		"^PQ2" +
		"^XZ"
	assert.Equal(t, want, string(out))
	assert.Equal(t, 1, strings.Count(string(out), "^B3"))
	assert.Equal(t, 1, strings.Count(string(out), "^FD1234567890^FS"))
}

func TestEncodeZPLTwoByOneSplitsLongName(t *testing.T) {
	rec := withName("ABCDEFGHIJKLMNOPQRST")
	out, err := newEncoder().Encode(rec, TwoByOne, ZPL, 1)
	require.NoError(t, err)

	want := "^XA" +
		"^FO230,100^BY1^B3N,N,80,Y,N^ADN,20,10^FD1234567890^FS" +
		"^FO230,200^ADN,20,10^FD(Category 01) ABCDEFGHIJKLMN^FS" +
		"^FO230,230^ADN,20,10^FDOPQRST^FS" +
		"^FO230,260^ADN,20,10^FD$50.00 (Gram)^FS" +
		"^PQ1" +
		"^XZ"
	assert.Equal(t, want, string(out))
}

func TestEncodeZPLThreeByTwo(t *testing.T) {
	out, err := newEncoder().Encode(withName("Cheese"), ThreeByTwo, ZPL, 1)
	require.NoError(t, err)

	want := "^XA" +
		"^FO150,50^BY1^B3N,N,80,Y,N^ADN,20,10^FD1234567890^FS" +
		"^FO150,150^ADN,20,10^FD(Category 01) Cheese^FS" +
		"^FO150,165^ADN,20,10^FD$50.00 (Gram)^FS" +
		"^PQ1" +
		"^XZ"
	assert.Equal(t, want, string(out))
}

func TestEncodeZPLThreeByTwoSplitsAtNine(t *testing.T) {
	out, err := newEncoder().Encode(SampleRecord, ThreeByTwo, ZPL, 1)
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "^FO150,150^ADN,20,10^FD(Category 01) Product 0^FS")
	assert.Contains(t, s, "^FO150,165^ADN,20,10^FD1^FS")
	assert.Contains(t, s, "^FO150,180^ADN,20,10^FD$50.00 (Gram)^FS")
}

func TestZPLBodySplitBoundary(t *testing.T) {
	enc := newEncoder()
	testCases := []struct {
		name  string
		size  Size
		input string
		lines int
	}{
		{"TwoByOneEmpty", TwoByOne, "", 2},
		{"TwoByOneAtThreshold", TwoByOne, strings.Repeat("a", 14), 2},
		{"TwoByOneOverThreshold", TwoByOne, strings.Repeat("a", 15), 3},
		{"ThreeByTwoAtThreshold", ThreeByTwo, strings.Repeat("b", 9), 2},
		{"ThreeByTwoOverThreshold", ThreeByTwo, strings.Repeat("b", 10), 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lines, err := enc.BodyLines(withName(tc.input), tc.size, ZPL)
			require.NoError(t, err)
			assert.Len(t, lines, tc.lines)
			assert.Equal(t, "$50.00 (Gram)", lines[len(lines)-1])
		})
	}
}

func TestZPLBodySplitPreservesName(t *testing.T) {
	name := "Organic Whole Milk 2L"
	lines, err := newEncoder().BodyLines(withName(name), TwoByOne, ZPL)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, "(Category 01) "+name[:14], lines[0])
	assert.Equal(t, name[14:], lines[1])
	assert.Equal(t, name, strings.TrimPrefix(lines[0], "(Category 01) ")+lines[1])
}

func TestEncodeCPCLTwoByOne(t *testing.T) {
	out, err := newEncoder().Encode(SampleRecord, TwoByOne, CPCL, 1)
	require.NoError(t, err)

	want := "! 0 200 200 150 1 \n" +
		"BARCODE 128 2 1 50 230 100 1234567890 \n" +
		"TEXT 4 2 230 155 1234567890 \n" +
		"TEXT 20 10 230 200 (Category 01) Product 01 \n" +
		"TEXT 20 10 230 230 $50.00 (Gram)     MIN:-6MAX: 100" +
		"\nFORM\nPRINT "
	assert.Equal(t, want, string(out))
}

func TestEncodeCPCLThreeByTwo(t *testing.T) {
	out, err := newEncoder().Encode(SampleRecord, ThreeByTwo, CPCL, 3)
	require.NoError(t, err)

	want := "! 0 200 200 150 3 \n" +
		"BARCODE 128 2 1 50 150 50 1234567890 \n" +
		"TEXT 4 2 150 60 1234567890 \n" +
		"TEXT 20 10 150 110 (Category 01) Product 01 \n" +
		"TEXT 20 10 150 140 $50.00 (Gram)     MIN:-6MAX: 100" +
		"\nFORM\nPRINT "
	assert.Equal(t, want, string(out))
}

func TestEncodeCPCLNeverSplitsName(t *testing.T) {
	enc := newEncoder()
	for _, n := range []int{1, 9, 14, 15, 40} {
		name := strings.Repeat("x", n)
		for _, size := range SupportedSizes() {
			lines, err := enc.BodyLines(withName(name), size, CPCL)
			require.NoError(t, err)
			require.Len(t, lines, 2)
			assert.Equal(t, "(Category 01) "+name, lines[0])

			out, err := enc.Encode(withName(name), size, CPCL, 1)
			require.NoError(t, err)
			assert.Contains(t, string(out), "(Category 01) "+name+" \n")
		}
	}
}

func TestEncodeCPCLOverridesDiagnostics(t *testing.T) {
	enc := NewEncoder(Options{CPCLMin: "MIN:0", CPCLMax: "MAX: 5"})
	out, err := enc.Encode(SampleRecord, TwoByOne, CPCL, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "$50.00 (Gram)     MIN:0MAX: 5\nFORM\nPRINT ")
}

func TestEncodeCPCLZeroOptionsUseDefaultDiagnostics(t *testing.T) {
	enc := NewEncoder(Options{DuplicateEndMarker: true})
	assert.Equal(t, DefaultCPCLMin, enc.Options().CPCLMin)
	assert.Equal(t, DefaultCPCLMax, enc.Options().CPCLMax)

	out, err := enc.Encode(SampleRecord, TwoByOne, CPCL, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "$50.00 (Gram)     MIN:-6MAX: 100\nFORM\nPRINT ")

	lines, err := NewEncoder(Options{}).BodyLines(SampleRecord, ThreeByTwo, CPCL)
	require.NoError(t, err)
	assert.Equal(t, "$50.00 (Gram)     MIN:-6MAX: 100", lines[1])
}

func TestEncodeCPCLAcceptsUTF8(t *testing.T) {
	rec := withName("Crème brûlée")
	out, err := newEncoder().Encode(rec, TwoByOne, CPCL, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Crème brûlée")
}

func TestEncodeMarkers(t *testing.T) {
	enc := newEncoder()
	markers := map[Language][2]string{
		ZPL:  {"^XA", "^XZ"},
		CPCL: {"! 0 200 200 150 ", "\nFORM\nPRINT "},
	}

	for _, size := range SupportedSizes() {
		for lang, m := range markers {
			t.Run(size.String()+"/"+lang.String(), func(t *testing.T) {
				out, err := enc.Encode(SampleRecord, size, lang, 1)
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(out, []byte(m[0])), "start marker")
				assert.True(t, bytes.HasSuffix(out, []byte(m[1])), "end marker")
			})
		}
	}
}

func TestEncodeDuplicateEndMarker(t *testing.T) {
	opts := DefaultOptions()
	opts.DuplicateEndMarker = true
	enc := NewEncoder(opts)

	out, err := enc.Encode(SampleRecord, TwoByOne, ZPL, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "^PQ1^XZ^XZ"))

	// CPCL is unaffected
	out, err = enc.Encode(SampleRecord, TwoByOne, CPCL, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\nFORM\nPRINT "))
	assert.NotContains(t, string(out), "^XZ")
}

func TestEncodeCopies(t *testing.T) {
	enc := newEncoder()
	for _, n := range []int{1, 2, 7, 100} {
		out, err := enc.Encode(SampleRecord, TwoByOne, ZPL, n)
		require.NoError(t, err)
		assert.Contains(t, string(out), "^PQ"+strconv.Itoa(n)+"^XZ")

		out, err = enc.Encode(SampleRecord, ThreeByTwo, CPCL, n)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), "! 0 200 200 150 "+strconv.Itoa(n)+" \n"))
	}
}

func TestEncodeRejectsInvalidCopies(t *testing.T) {
	enc := newEncoder()
	for _, n := range []int{0, -1, -50} {
		for _, lang := range []Language{ZPL, CPCL} {
			out, err := enc.Encode(SampleRecord, TwoByOne, lang, n)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrInvalidCopies)
		}
	}
}

func TestEncodeUnsupportedSizes(t *testing.T) {
	enc := newEncoder()
	for _, size := range []Size{FourByTwo, FourByThree, FourBySix, Size(42)} {
		for _, lang := range []Language{ZPL, CPCL} {
			out, err := enc.Encode(SampleRecord, size, lang, 1)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrUnsupportedSize, "%s/%s", size, lang)
		}
		_, err := enc.BodyLines(SampleRecord, size, ZPL)
		assert.ErrorIs(t, err, ErrUnsupportedSize)
	}
}

func TestEncodeUnsupportedLanguage(t *testing.T) {
	_, err := newEncoder().Encode(SampleRecord, TwoByOne, Language(9), 1)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestEncodeZPLRejectsUnencodableContent(t *testing.T) {
	testCases := []struct {
		name   string
		rec    Record
		field  string
		offset int
	}{
		{"NonASCIIName", withName("Crème"), "product name", 2},
		{"Caret", Record{Barcode: "12^34"}, "barcode", 2},
		{"Tilde", Record{Barcode: "1", ProductType: "~JA"}, "product type", 0},
		{"Newline", Record{FormattedPrice: "$1\n"}, "price", 2},
		{"Unit", Record{UnitOfMeasure: "µg"}, "unit of measure", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := newEncoder().Encode(tc.rec, TwoByOne, ZPL, 1)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrEncoding)

			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr))
			assert.Equal(t, tc.field, encErr.Field)
			assert.Equal(t, tc.offset, encErr.Offset)
		})
	}
}

func TestEncodeCPCLRejectsLineBreaks(t *testing.T) {
	_, err := newEncoder().Encode(withName("two\nlines"), TwoByOne, CPCL, 1)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestEncodeCPCLReplacementCharacter(t *testing.T) {
	out, err := newEncoder().Encode(withName("Mystery \uFFFD box"), TwoByOne, CPCL, 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "(Category 01) Mystery \uFFFD box \n")

	out, err = newEncoder().Encode(withName("bad \xff byte"), TwoByOne, CPCL, 1)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrEncoding)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "product name", encErr.Field)
	assert.Equal(t, 4, encErr.Offset)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(TwoByOne, 1))
	assert.NoError(t, Validate(ThreeByTwo, 500))
	assert.ErrorIs(t, Validate(FourBySix, 1), ErrUnsupportedSize)
	assert.ErrorIs(t, Validate(TwoByOne, 0), ErrInvalidCopies)
	// Size is checked first
	assert.ErrorIs(t, Validate(Size(42), 0), ErrUnsupportedSize)
}

func TestEncodeIsDeterministic(t *testing.T) {
	enc := newEncoder()
	a, err := enc.Encode(SampleRecord, TwoByOne, ZPL, 3)
	require.NoError(t, err)
	b, err := enc.Encode(SampleRecord, TwoByOne, ZPL, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
