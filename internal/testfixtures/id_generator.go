package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator hands out predictable identifiers such as "evt-1", "evt-2".
// It stands in for uuid.NewString and for session token generation.
type IDGenerator struct {
	prefix string
	issued atomic.Uint64
}

// NewIDGenerator uses prefix, or "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier. Safe for concurrent use.
func (g *IDGenerator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.issued.Add(1), 10)
}

// NextFunc returns Next for injection. A nil generator yields empty strings.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Count reports how many identifiers were issued.
func (g *IDGenerator) Count() uint64 {
	return g.issued.Load()
}
