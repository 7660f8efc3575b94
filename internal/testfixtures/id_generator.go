package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out identifiers in a predictable "prefix-1",
// "prefix-2", ... sequence so tests can assert on stored IDs directly.
type IDGenerator struct {
	prefix string
	n      atomic.Uint64
}

// NewIDGenerator constructs a generator with the given prefix, or "id"
// when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.n.Add(1), 10)
}

// NextFunc adapts the generator to the idGenerator dependency the
// services take. A nil generator yields empty identifiers.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}
