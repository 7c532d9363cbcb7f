package ids

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// TokenSize is the width of a ServiceToken in raw bytes.
const TokenSize = 32

// ErrInvalidToken is returned when a string cannot be parsed into a ServiceToken.
var ErrInvalidToken = errors.New("ids: invalid service token")

// ServiceToken is the 32-byte deterministic credential exchanged for a
// claimed payment. It is never randomly generated: see DeriveServiceToken.
type ServiceToken [TokenSize]byte

// ParseServiceToken validates and canonicalizes s into a ServiceToken. s
// must be exactly 64 hex characters; case is folded to lowercase before
// validation, matching PaymentId's parsing rules.
func ParseServiceToken(s string) (ServiceToken, error) {
	var tok ServiceToken
	if len(s) != TokenSize*2 {
		return tok, ErrInvalidToken
	}
	raw, err := hex.DecodeString(toLowerHex(s))
	if err != nil {
		return tok, ErrInvalidToken
	}
	copy(tok[:], raw)
	return tok, nil
}

// DeriveServiceToken computes SHA3-256 over "hex(pid)|hex(txid)". The
// pipe separator is mandatory: it fixes the encoding of the concatenation
// so that a future change to either component's width cannot introduce a
// collision between differently-split inputs that happen to concatenate
// to the same bytes.
func DeriveServiceToken(pid PaymentId, txid [32]byte) ServiceToken {
	h := sha3.New256()
	h.Write([]byte(pid.String()))
	h.Write([]byte{'|'})
	h.Write([]byte(hex.EncodeToString(txid[:])))
	var tok ServiceToken
	copy(tok[:], h.Sum(nil))
	return tok
}

// String renders the ServiceToken as 64 lowercase hex characters.
func (t ServiceToken) String() string {
	return hex.EncodeToString(t[:])
}

// Bytes returns the raw 32-byte slice backing t.
func (t ServiceToken) Bytes() []byte {
	return t[:]
}

// ServiceTokenFromBytes builds a ServiceToken from a raw byte slice of
// exactly TokenSize bytes, as read back from storage.
func ServiceTokenFromBytes(b []byte) (ServiceToken, error) {
	var tok ServiceToken
	if len(b) != TokenSize {
		return tok, ErrInvalidToken
	}
	copy(tok[:], b)
	return tok, nil
}
