package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseElement(t *testing.T) {
	v, err := ParseElement("123")
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(big.NewInt(123)))

	v, err = ParseElement("0xff")
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(big.NewInt(255)))

	v, err = ParseElement("  42\n")
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(big.NewInt(42)))

	_, err = ParseElement("")
	require.Error(t, err)
	_, err = ParseElement("0xzz")
	require.Error(t, err)
	_, err = ParseElement("twelve")
	require.Error(t, err)
}

func TestElementBytesRoundTrip(t *testing.T) {
	for _, v := range []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(1 << 40)} {
		b := ElementBytes(v)
		require.Equal(t, 0, ElementFromBytes(b[:]).Cmp(v))
	}
}

func TestElementStringWidth(t *testing.T) {
	s := ElementString(big.NewInt(1))
	require.Len(t, s, 2+64) // 0x prefix + 32 bytes of hex
	v, err := ParseElement(s)
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(big.NewInt(1)))
}
