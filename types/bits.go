package types

// Bits is the set of register-backed flag types that can be rendered by name.
type Bits interface {
	~uint8 | ~uint16 | ~uint32
}

// Generic pairing of a bit value with a printable name.
type BitName[T Bits] struct {
	Bit  T
	Name string
}

// BitIter is a zero-alloc iterator over set bits in a value, filtered by a table.
// Caller advances with Next(); no callbacks, no closures.
type BitIter[T Bits] struct {
	v     uint32
	i     int
	table []BitName[T]
}

// NewBitIter constructs an iterator over set bits present in v that also exist in table.
func NewBitIter[T Bits](v T, table []BitName[T]) BitIter[T] {
	return BitIter[T]{v: uint32(v), i: 0, table: table}
}

// Next returns the next SET bit: (name, ok). ok=false when done.
func (it *BitIter[T]) Next() (string, bool) {
	for it.i < len(it.table) {
		e := it.table[it.i]
		it.i++
		if (it.v & uint32(e.Bit)) != 0 {
			return e.Name, true
		}
	}
	return "", false
}

// Reset allows reusing the iterator.
func (it *BitIter[T]) Reset() { it.i = 0 }

// NextAny returns the next table entry: (name, set, ok).
// set indicates whether the bit is present in the value.
func (it *BitIter[T]) NextAny() (string, bool, bool) {
	if it.i >= len(it.table) {
		return "", false, false
	}
	e := it.table[it.i]
	it.i++
	set := (it.v & uint32(e.Bit)) != 0
	return e.Name, set, true
}

// Names returns the names of every set bit, in table order.
func Names[T Bits](v T, table []BitName[T]) []string {
	var out []string
	it := NewBitIter(v, table)
	for {
		n, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}
