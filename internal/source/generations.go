// Package source loads the products, sales and pre-order collections that feed
// the report engine. Every Load returns one complete, stamped generation.
package source

import "sync/atomic"

// Generations stamps each loaded dataset with a monotonically increasing number.
type Generations struct {
	n atomic.Uint64
}

// Next returns the next generation number, starting at 1.
func (g *Generations) Next() uint64 {
	return g.n.Add(1)
}

// Current returns the last generation handed out.
func (g *Generations) Current() uint64 {
	return g.n.Load()
}
