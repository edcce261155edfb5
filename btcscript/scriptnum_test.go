package btcscript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptNumEncoding(t *testing.T) {
	tests := []struct {
		v       int64
		encoded []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x00}},
		{-1, []byte{0x81}},
		{-128, []byte{0x80, 0x80}},
		{500, []byte{0xf4, 0x01}},
		{5063, []byte{0xc7, 0x13}},
		{65_535, []byte{0xff, 0xff, 0x00}},
	}

	for _, tc := range tests {
		require.Equal(t, tc.encoded, encodeScriptNum(tc.v), "value %d", tc.v)
		decoded, ok := decodeScriptNum(tc.encoded)
		require.True(t, ok)
		require.Equal(t, tc.v, decoded)
	}
}

func TestDecodeScriptNumRejectsNonMinimal(t *testing.T) {
	for _, b := range [][]byte{
		{0x00},
		{0x80},
		{0x05, 0x00},
		{0x01, 0x02, 0x03, 0x04, 0x05},
	} {
		_, ok := decodeScriptNum(b)
		require.False(t, ok, "%x", b)
	}
}

func TestEncodeUnsignedBE(t *testing.T) {
	require.Equal(t, []byte{0x13, 0xc7}, encodeUnsignedBE(5063, 2))
	require.Equal(t, []byte{0x00, 0x05}, encodeUnsignedBE(5, 2))
	require.Equal(t, []byte{0xff, 0xff}, encodeUnsignedBE(65_535, 2))
}
