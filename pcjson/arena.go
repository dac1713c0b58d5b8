package pcjson

// Arena block sizes
const (
	DefaultBlockBytes  = 32768
	DefaultBlockValues = 1024
)

// Arena hands out the storage of one parse and releases it as a unit.
// Slices returned by Bytes and Values are capped at their length so
// appending to them never overwrites a neighbour.
type Arena struct {
	bytes  []byte
	values []Value

	blocks    int
	allocated int
}

// Bytes returns n zeroed bytes
func (a *Arena) Bytes(n int) []byte {
	if n > len(a.bytes) {
		a.bytes = make([]byte, max(DefaultBlockBytes, n))
		a.blocks++
	}
	out := a.bytes[:n:n]
	a.bytes = a.bytes[n:]
	a.allocated += n
	return out
}

// Values returns n nil values
func (a *Arena) Values(n int) []Value {
	if n > len(a.values) {
		a.values = make([]Value, max(DefaultBlockValues, n))
		a.blocks++
	}
	out := a.values[:n:n]
	a.values = a.values[n:]
	a.allocated += n
	return out
}

// Allocated returns the number of bytes and values handed out since the last Reset
func (a *Arena) Allocated() int { return a.allocated }

// Blocks returns the number of blocks backing the allocations
func (a *Arena) Blocks() int { return a.blocks }

// Reset drops every block, previously returned slices stay valid
// for their holders but are no longer tracked
func (a *Arena) Reset() {
	a.bytes, a.values = nil, nil
	a.blocks, a.allocated = 0, 0
}
