package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	testCases := map[string]Size{
		"2x1":         TwoByOne,
		"3X2":         ThreeByTwo,
		" 4x6 ":       FourBySix,
		"TwoByOne":    TwoByOne,
		"fourbythree": FourByThree,
	}
	for in, want := range testCases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSize("5x5")
	assert.Error(t, err)
}

func TestSupportedSizes(t *testing.T) {
	assert.Equal(t, []Size{TwoByOne, ThreeByTwo}, SupportedSizes())
	assert.False(t, FourByTwo.Supported())

	w, h, ok := TwoByOne.Dots()
	assert.True(t, ok)
	assert.Equal(t, 406, w)
	assert.Equal(t, 203, h)

	_, _, ok = FourBySix.Dots()
	assert.False(t, ok)
}

func TestLayoutAnchors(t *testing.T) {
	x, y, step, ok := TwoByOne.Origin(ZPL)
	require.True(t, ok)
	assert.Equal(t, []int{230, 200, 30}, []int{x, y, step})

	x, y, step, ok = ThreeByTwo.Origin(CPCL)
	require.True(t, ok)
	assert.Equal(t, []int{150, 110, 30}, []int{x, y, step})

	x, y, h, ok := TwoByOne.Barcode(CPCL)
	require.True(t, ok)
	assert.Equal(t, []int{230, 100, 50}, []int{x, y, h})

	_, _, _, ok = FourByThree.Barcode(ZPL)
	assert.False(t, ok)
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("zpl")
	require.NoError(t, err)
	assert.Equal(t, ZPL, lang)

	lang, err = ParseLanguage("CPCL")
	require.NoError(t, err)
	assert.Equal(t, CPCL, lang)

	_, err = ParseLanguage("epl")
	assert.Error(t, err)
	assert.Equal(t, "Language(7)", Language(7).String())
}
