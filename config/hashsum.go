package config

import (
	"bytes"
	"hash/fnv"

	"github.com/goccy/go-json"
)

// Hashsum calculates FNV non-cryptographic hash suitable for checking the equality
func Hashsum(args ...any) ([]byte, error) {
	var b bytes.Buffer
	for _, arg := range args {
		var s []byte
		switch arg := arg.(type) {
		case []byte:
			s = arg
		case string:
			s = []byte(arg)
		default:
			var err error
			if s, err = json.Marshal(arg); err != nil {
				return nil, err
			}
		}
		if _, err := b.Write(s); err != nil {
			return nil, err
		}
	}
	h := fnv.New128()
	if _, err := h.Write(b.Bytes()); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
