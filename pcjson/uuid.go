package pcjson

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gwos/pcjsongen/errors"
)

// PipelineUUID hashes a JSON value tree with MD5. Lists hash their
// length, objects their values in key order, strings their length and
// bytes, integers use the narrowest of int32, uint32, int64 and uint64.
func PipelineUUID(doc any) ([UUIDSize]byte, error) {
	var id [UUIDSize]byte
	h := md5.New()
	if err := hashValue(h, doc); err != nil {
		return id, err
	}
	copy(id[:], h.Sum(nil))
	return id, nil
}

func hashValue(h hash.Hash, v any) error {
	var buf [8]byte
	le := binary.LittleEndian
	switch v := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			if err := hashValue(h, v[k]); err != nil {
				return err
			}
		}
	case []any:
		le.PutUint32(buf[:4], uint32(len(v)))
		h.Write(buf[:4])
		for _, item := range v {
			if err := hashValue(h, item); err != nil {
				return err
			}
		}
	case bool:
		if v {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case string:
		le.PutUint64(buf[:], uint64(len(v)))
		h.Write(buf[:])
		io.WriteString(h, v)
	case float64:
		le.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	case float32:
		return hashValue(h, float64(v))
	case json.Number:
		return hashNumber(h, v)
	case int64:
		hashInt(h, v)
	case int:
		hashInt(h, int64(v))
	case int32:
		hashInt(h, int64(v))
	case uint64:
		hashUint(h, v)
	case uint32:
		hashUint(h, uint64(v))
	case uint8:
		hashUint(h, uint64(v))
	case Handle:
		hashUint(h, uint64(v))
	default:
		return fmt.Errorf("%w: unexpected JSON value type %T", errors.ErrInvalidInput, v)
	}
	return nil
}

func hashNumber(h hash.Hash, n json.Number) error {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
		}
		return hashValue(h, f)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		hashInt(h, i)
		return nil
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	hashUint(h, u)
	return nil
}

func hashInt(h hash.Hash, i int64) {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(i)))
		h.Write(buf[:])
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	h.Write(buf[:])
}

func hashUint(h hash.Hash, u uint64) {
	if u <= math.MaxInt64 {
		if u > math.MaxInt32 && u <= math.MaxUint32 {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(u))
			h.Write(buf[:])
			return
		}
		hashInt(h, int64(u))
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	h.Write(buf[:])
}
