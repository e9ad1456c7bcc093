package match

import (
	"maps"

	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/effect"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// AttributeHealth restores health like healing; regen effects use it
const AttributeHealth = "Health"

type activeEffect struct {
	target     world.Handle
	instigator world.Handle
	spec       effect.EffectSpec
	magnitude  float64
	modifier   bool
	period     clock.Token
	expire     clock.Token
}

// DispatchStats counts what the dispatcher did
type DispatchStats struct {
	Applied int            `json:"applied"`
	Active  int            `json:"active"`
	Removed int            `json:"removed"`
	Deaths  int            `json:"deaths"`
	Events  map[string]int `json:"events"`
}

// Dispatcher applies effect containers to arena actors. Damage and healing
// change health; other attributes are additive modifiers that revert when the
// effect ends.
type Dispatcher struct {
	w   *world.World
	clk *clock.Scheduler
	log *zap.Logger

	next   effect.EffectHandle
	active map[effect.EffectHandle]*activeEffect
	grants map[world.Handle]map[tags.Tag]int
	events map[tags.Tag]int
	stats  DispatchStats

	// OnDeath runs on the tick after an actor's health reaches zero
	OnDeath func(victim, killer world.Handle)
}

// NewDispatcher creates a dispatcher over w
func NewDispatcher(w *world.World, clk *clock.Scheduler, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		w:      w,
		clk:    clk,
		log:    log,
		active: make(map[effect.EffectHandle]*activeEffect),
		grants: make(map[world.Handle]map[tags.Tag]int),
		events: make(map[tags.Tag]int),
	}
}

func levelFactor(level int) float64 {
	if level <= 1 {
		return 1
	}
	return 1 + 0.1*float64(level-1)
}

// ApplyEffectContainer implements effect.Dispatcher. Only infinite effects
// return a handle; timed ones run out on their own.
func (d *Dispatcher) ApplyEffectContainer(c effect.Container, target world.Handle) []effect.EffectHandle {
	if !d.w.Valid(target) {
		return nil
	}
	factor := levelFactor(c.Level)
	var handles []effect.EffectHandle
	for _, spec := range c.Specs {
		d.stats.Applied++
		mag := spec.Magnitude * factor
		if spec.Duration == 0 {
			d.modify(target, spec.Attribute, mag, c.Instigator)
			continue
		}
		h := d.track(target, c.Instigator, spec, mag)
		if spec.IsInfinite() {
			handles = append(handles, h)
		}
	}
	return handles
}

func (d *Dispatcher) track(target, instigator world.Handle, spec effect.EffectSpec, mag float64) effect.EffectHandle {
	d.next++
	h := d.next
	ae := &activeEffect{
		target:     target,
		instigator: instigator,
		spec:       spec,
		magnitude:  mag,
		modifier:   spec.Period <= 0 && !isVital(spec.Attribute),
	}
	d.active[h] = ae
	for _, t := range spec.GrantTags {
		d.grant(target, t, 1)
	}

	switch {
	case spec.Period > 0:
		ae.period = d.clk.Every(spec.Period, spec.Period, func() {
			if !d.w.Valid(ae.target) {
				d.RemoveEffect(h)
				return
			}
			d.modify(ae.target, ae.spec.Attribute, ae.magnitude, ae.instigator)
		})
	case ae.modifier:
		d.adjust(target, spec.Attribute, mag)
	default:
		d.modify(target, spec.Attribute, mag, instigator)
	}
	if spec.Duration > 0 {
		ae.expire = d.clk.After(spec.Duration, func() {
			ae.expire = 0
			d.RemoveEffect(h)
		})
	}
	return h
}

func isVital(attribute string) bool {
	switch attribute {
	case effect.AttributeDamage, effect.AttributeHealing, AttributeHealth:
		return true
	}
	return false
}

// modify changes health or an attribute once
func (d *Dispatcher) modify(target world.Handle, attribute string, mag float64, instigator world.Handle) {
	if !isVital(attribute) {
		d.adjust(target, attribute, mag)
		return
	}
	died := false
	d.w.Update(target, func(a *world.Actor) {
		if a.MaxHealth <= 0 || a.Health <= 0 {
			return
		}
		if attribute == effect.AttributeDamage {
			a.Health = max(0, a.Health-mag)
			died = a.Health == 0
			return
		}
		a.Health = min(a.MaxHealth, a.Health+mag)
	})
	if !died {
		return
	}
	d.stats.Deaths++
	d.purge(target)
	d.log.Debug("actor died", zap.Stringer("victim", target), zap.Stringer("killer", instigator))
	if d.OnDeath != nil {
		d.clk.NextTick(func() { d.OnDeath(target, instigator) })
	}
}

func (d *Dispatcher) adjust(target world.Handle, attribute string, mag float64) {
	d.w.Update(target, func(a *world.Actor) {
		if a.Attributes == nil {
			a.Attributes = make(map[string]float64)
		}
		a.Attributes[attribute] += mag
	})
}

func (d *Dispatcher) grant(target world.Handle, t tags.Tag, n int) {
	g := d.grants[target]
	if g == nil {
		g = make(map[tags.Tag]int)
		d.grants[target] = g
	}
	g[t] += n
	if g[t] <= 0 {
		delete(g, t)
	}
	if len(g) == 0 {
		delete(d.grants, target)
	}
}

// purge removes every effect held on target
func (d *Dispatcher) purge(target world.Handle) {
	for h, ae := range d.active {
		if ae.target == target {
			d.RemoveEffect(h)
		}
	}
	delete(d.grants, target)
}

// RemoveEffect implements effect.Dispatcher
func (d *Dispatcher) RemoveEffect(h effect.EffectHandle) bool {
	ae, ok := d.active[h]
	if !ok {
		return false
	}
	delete(d.active, h)
	d.clk.Cancel(ae.period)
	d.clk.Cancel(ae.expire)
	if ae.modifier {
		d.adjust(ae.target, ae.spec.Attribute, -ae.magnitude)
	}
	for _, t := range ae.spec.GrantTags {
		d.grant(ae.target, t, -1)
	}
	d.stats.Removed++
	return true
}

// OwnedTags implements effect.Dispatcher: the actor's own tags plus granted ones
func (d *Dispatcher) OwnedTags(target world.Handle) tags.Set {
	a, ok := d.w.Actor(target)
	if !ok {
		return tags.Set{}
	}
	g := d.grants[target]
	if len(g) == 0 {
		return a.Tags
	}
	granted := make([]tags.Tag, 0, len(g))
	for t := range maps.Keys(g) {
		granted = append(granted, t)
	}
	return a.Tags.With(granted...)
}

// HandleEvent implements effect.Dispatcher by counting gameplay events
func (d *Dispatcher) HandleEvent(_ world.Handle, tag tags.Tag, _ effect.Payload) {
	d.events[tag]++
}

// Active returns the number of live timed and infinite effects
func (d *Dispatcher) Active() int { return len(d.active) }

// Stats returns a copy of the counters
func (d *Dispatcher) Stats() DispatchStats {
	s := d.stats
	s.Active = len(d.active)
	s.Events = make(map[string]int, len(d.events))
	for t, n := range d.events {
		s.Events[string(t)] = n
	}
	return s
}
