// Package idgenerator hands out increasing uint32 identifiers, used to tag
// client sessions and peer connections in logs.
package idgenerator

import "sync/atomic"

// IdGenerator is a concurrency-safe counter. The first Id is start+1.
type IdGenerator struct {
	id atomic.Uint32
}

// NewIdGenerator creates a generator whose first Id returns startValue+1.
func NewIdGenerator(startValue uint32) *IdGenerator {
	gen := &IdGenerator{}
	gen.id.Store(startValue)
	return gen
}

// Id returns the next identifier. It wraps around after max uint32.
func (g *IdGenerator) Id() uint32 {
	return g.id.Add(1)
}

// Last returns the most recently issued identifier (or the start value).
func (g *IdGenerator) Last() uint32 {
	return g.id.Load()
}
