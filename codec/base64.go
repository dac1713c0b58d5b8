// Package codec holds the text encodings shared by every emitted artifact:
// base64 for opaque blobs, |-joined flag names and enumeration names.
package codec

import (
	"fmt"
	"math"

	"github.com/gwos/pcjsongen/errors"
)

// Base64Alphabet is the standard alphabet, emitted verbatim into generated tables
const Base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Base64Pad terminates the encoded stream
const Base64Pad = '='

// ErrInvalidBase64 is returned for characters outside the alphabet
var ErrInvalidBase64 = fmt.Errorf("%w: %v", errors.ErrInvalidInput, "invalid base64 character")

var base64Decode = func() (t [256]int8) {
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(Base64Alphabet); i++ {
		t[Base64Alphabet[i]] = int8(i)
	}
	return
}()

// EncodeBase64 groups 3 input bytes into 4 characters with = padding
func EncodeBase64(data []byte) string {
	out := make([]byte, 0, (len(data)+2)/3*4)
	for i := 0; i < len(data); i += 3 {
		n := min(3, len(data)-i)
		var s0, s1, s2 byte
		s0 = data[i]
		if n >= 2 {
			s1 = data[i+1]
		}
		if n >= 3 {
			s2 = data[i+2]
		}
		out = append(out,
			Base64Alphabet[s0>>2],
			Base64Alphabet[(s0&0x3)<<4|s1>>4],
			Base64Alphabet[(s1&0xF)<<2|s2>>6],
			Base64Alphabet[s2&0x3F])
		if n < 3 {
			out[len(out)-1] = Base64Pad
		}
		if n < 2 {
			out[len(out)-2] = Base64Pad
		}
	}
	return string(out)
}

// DecodeBase64 accumulates 6-bit groups in a 32-bit window and emits
// a byte for every 8 accumulated bits, = ends the stream
func DecodeBase64(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*3/4)
	var window uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == Base64Pad {
			break
		}
		v := base64Decode[c]
		if v < 0 {
			return nil, fmt.Errorf("%w '%c' at offset %d", ErrInvalidBase64, c, i)
		}
		window = window<<6 | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(window>>bits))
			window &= 1<<bits - 1
		}
	}
	return out, nil
}

// DecodeBinary accepts a base64 string or the legacy array of byte values
func DecodeBinary(v any) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return DecodeBase64(v)
	case []any:
		out := make([]byte, len(v))
		for i, item := range v {
			n, ok := ToInt64(item)
			if !ok || n < 0 || n > math.MaxUint8 {
				return nil, fmt.Errorf("%w: binary element %d is not a byte value", errors.ErrInvalidInput, i)
			}
			out[i] = byte(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, "not a base64 encoded binary")
}
