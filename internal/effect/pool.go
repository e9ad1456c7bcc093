package effect

import (
	"fmt"

	"go.uber.org/zap"
)

// PoolStats is a snapshot of pool usage
type PoolStats struct {
	Live      int
	Free      int
	Created   int
	Destroyed int
	Finished  int
}

// Pool keeps per-class free lists of entities. Released entities beyond the
// per-class capacity are destroyed; Acquire fails once maxLive entities exist.
type Pool struct {
	env      *Env
	defs     map[string]*Definition
	free     map[string][]*Entity
	capacity int
	maxLive  int
	stats    PoolStats
}

// NewPool creates a pool that keeps at most capacity idle entities per class.
// maxLive <= 0 means no limit on live entities.
func NewPool(env *Env, capacity, maxLive int) *Pool {
	if capacity <= 0 {
		capacity = 16
	}
	return &Pool{
		env:      env,
		defs:     make(map[string]*Definition),
		free:     make(map[string][]*Entity),
		capacity: capacity,
		maxLive:  maxLive,
	}
}

// Register makes a class available. Registering again replaces the definition
// for entities created afterwards.
func (p *Pool) Register(def *Definition) {
	p.defs[def.Class] = def
}

// Definition returns the registered definition for class
func (p *Pool) Definition(class string) (*Definition, bool) {
	d, ok := p.defs[class]
	return d, ok
}

// Acquire hands out a pooled entity of class, creating one if the free list is empty
func (p *Pool) Acquire(class string) (*Entity, error) {
	def, ok := p.defs[class]
	if !ok {
		return nil, fmt.Errorf("acquire %q: unknown class: %w", class, ErrNoCandidate)
	}
	if list := p.free[class]; len(list) > 0 {
		e := list[len(list)-1]
		p.free[class] = list[:len(list)-1]
		p.stats.Live++
		return e, nil
	}
	if p.maxLive > 0 && p.stats.Live >= p.maxLive {
		return nil, fmt.Errorf("acquire %q: %d live: %w", class, p.stats.Live, ErrEmptyPool)
	}
	p.stats.Created++
	p.stats.Live++
	return NewEntity(p.env, def), nil
}

// Release takes back a pooled entity
func (p *Pool) Release(e *Entity) {
	if e.State() != StatePooled {
		p.env.Report(fmt.Errorf("release %s: %w", e, ErrInvariant))
		return
	}
	p.stats.Live--
	class := e.Class()
	if len(p.free[class]) >= p.capacity {
		e.destroyed = true
		p.stats.Destroyed++
		p.env.log.Debug("pool saturated, entity destroyed", zap.String("class", class), zap.Uint32("entity", e.id))
		return
	}
	p.free[class] = append(p.free[class], e)
}

// NotifyFinished counts an entity that completed its lifecycle
func (p *Pool) NotifyFinished(*Entity) {
	p.stats.Finished++
}

// Stats returns current usage
func (p *Pool) Stats() PoolStats {
	s := p.stats
	for _, list := range p.free {
		s.Free += len(list)
	}
	return s
}
