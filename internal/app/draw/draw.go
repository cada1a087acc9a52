// Package draw implements the weighted winner selection. It performs no I/O:
// the caller supplies the prize slots, the entrant pool and the randomness
// source, which keeps every draw reproducible under a fixed seed.
package draw

import (
	"math/rand"
	"sync"
)

// Entrant is one participant in the pool; Weight is the relative selection
// probability and must be >= 1.
type Entrant struct {
	UserID int64
	Weight int
}

// Assignment binds one entrant to one prize slot.
type Assignment struct {
	UserID    int64
	PrizeName string
}

// Picker holds the randomness source. *rand.Rand is not safe for concurrent
// use, so draws serialize on the mutex.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(src rand.Source) *Picker {
	return &Picker{rng: rand.New(src)}
}

// Pick assigns entrants to prizes in slot order. Each winner leaves the pool
// before the next slot is drawn, so nobody wins twice in one lottery and the
// pool shrinks strictly. When the pool runs out, remaining prizes stay
// unassigned. Entrant order is preserved, which makes the draw sequence a
// pure function of seed and input order.
func (p *Picker) Pick(prizes []string, entrants []Entrant) []Assignment {
	if len(prizes) == 0 || len(entrants) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pool := make([]Entrant, len(entrants))
	copy(pool, entrants)

	assignments := make([]Assignment, 0, len(prizes))
	for _, prize := range prizes {
		if len(pool) == 0 {
			break
		}

		idx := p.weightedIndex(pool)
		assignments = append(assignments, Assignment{
			UserID:    pool[idx].UserID,
			PrizeName: prize,
		})
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	return assignments
}

// weightedIndex picks a pool index with probability proportional to weight,
// by walking the cumulative weight until the sampled point falls inside an
// entrant's band.
func (p *Picker) weightedIndex(pool []Entrant) int {
	var total int64
	for _, e := range pool {
		w := e.Weight
		if w < 1 {
			w = 1
		}
		total += int64(w)
	}

	point := p.rng.Int63n(total)
	for i, e := range pool {
		w := e.Weight
		if w < 1 {
			w = 1
		}
		point -= int64(w)
		if point < 0 {
			return i
		}
	}
	return len(pool) - 1
}
