package btcscript

import "encoding/binary"

// encodeScriptNum serializes v as a minimally encoded little-endian
// sign-magnitude script number.
func encodeScriptNum(v int64) []byte {
	if v == 0 {
		return nil
	}

	negative := v < 0
	abs := uint64(v)
	if negative {
		abs = uint64(-v)
	}

	var out []byte
	for abs > 0 {
		out = append(out, byte(abs&0xff))
		abs >>= 8
	}

	// The most significant byte carries the sign bit; add a byte when the
	// magnitude already uses it.
	if out[len(out)-1]&0x80 != 0 {
		extra := byte(0x00)
		if negative {
			extra = 0x80
		}
		out = append(out, extra)
	} else if negative {
		out[len(out)-1] |= 0x80
	}

	return out
}

// decodeScriptNum parses a minimally encoded script number of up to 4 bytes.
func decodeScriptNum(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, true
	}
	if len(b) > 4 {
		return 0, false
	}
	// reject non-minimal encodings
	if b[len(b)-1]&0x7f == 0 && (len(b) == 1 || b[len(b)-2]&0x80 == 0) {
		return 0, false
	}

	var v int64
	for i, octet := range b {
		v |= int64(octet) << uint8(8*i)
	}
	if b[len(b)-1]&0x80 != 0 {
		v &= ^(int64(0x80) << uint8(8*(len(b)-1)))
		return -v, true
	}
	return v, true
}

// encodeUnsignedBE serializes v as a fixed-width unsigned big-endian value.
func encodeUnsignedBE(v uint64, width int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf[8-width:]
}
