package walletrpc

import "encoding/hex"

// hexDecode decodes s into exactly wantLen bytes, rejecting empty,
// odd-length, non-hex, or wrong-length strings. The wallet sometimes
// omits payment_id entirely (plain transfers) or reports the long
// 32-byte encrypted form; both are treated as "no usable payment id".
func hexDecode(s string, wantLen int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, hex.ErrLength
	}
	return b, nil
}
