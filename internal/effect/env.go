package effect

import (
	"slices"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"effects-server/internal/clock"
	"effects-server/internal/geom"
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// EnvConfig wires an Env to its collaborators
type EnvConfig struct {
	Clock      *clock.Scheduler
	Spatial    SpatialQuery
	Dispatcher Dispatcher
	Cues       CueHandler
	Scaler     AttributeScaler
	Shared     *SharedDataTable
	Registry   *TargetRegistry
	Ledger     IndividualLedger
	Pool       PoolManager
	Events     Publisher
	Log        *zap.Logger
	Authority  bool
}

// Env is the simulation context shared by every entity and overlap event of a match
type Env struct {
	clock      *clock.Scheduler
	spatial    SpatialQuery
	dispatcher Dispatcher
	cues       CueHandler
	scaler     AttributeScaler
	shared     *SharedDataTable
	registry   *TargetRegistry
	ledger     IndividualLedger
	pool       PoolManager
	events     Publisher
	log        *zap.Logger
	authority  bool

	closed   bool
	nextID   uint32
	siblings *intmap.Map[int32, []*Entity]
}

// NewEnv creates an environment. Missing optional collaborators get inert defaults.
func NewEnv(cfg EnvConfig) *Env {
	env := &Env{
		clock:      cfg.Clock,
		spatial:    cfg.Spatial,
		dispatcher: cfg.Dispatcher,
		cues:       cfg.Cues,
		scaler:     cfg.Scaler,
		shared:     cfg.Shared,
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		pool:       cfg.Pool,
		events:     cfg.Events,
		log:        cfg.Log,
		authority:  cfg.Authority,
		siblings:   intmap.New[int32, []*Entity](32),
	}
	if env.log == nil {
		env.log = zap.NewNop()
	}
	if env.events == nil {
		env.events = discardPublisher{}
	}
	if env.shared == nil {
		env.shared = NewSharedDataTable(cfg.Authority, nil)
	}
	if env.registry == nil {
		env.registry = NewTargetRegistry()
	}
	return env
}

// Available reports whether the simulation context can still be used
func (env *Env) Available() bool {
	return !env.closed && env.clock != nil && env.spatial != nil
}

// Close marks the world as gone. Entities deactivate at their next checkpoint.
func (env *Env) Close() { env.closed = true }

func (env *Env) Clock() *clock.Scheduler          { return env.clock }
func (env *Env) Spatial() SpatialQuery            { return env.spatial }
func (env *Env) Dispatcher() Dispatcher           { return env.dispatcher }
func (env *Env) Scaler() AttributeScaler          { return env.scaler }
func (env *Env) Shared() *SharedDataTable         { return env.shared }
func (env *Env) Registry() *TargetRegistry        { return env.registry }
func (env *Env) Log() *zap.Logger                 { return env.log }
func (env *Env) Authority() bool                  { return env.authority }
func (env *Env) SetPool(p PoolManager)            { env.pool = p }
func (env *Env) SetLedger(l IndividualLedger)     { env.ledger = l }
func (env *Env) Report(err error, f ...zap.Field) { report(env.log, err, f...) }

// Publish stamps ev with the current tick and time and hands it to the publisher
func (env *Env) Publish(ev Event) {
	if env.clock != nil {
		ev.Tick = env.clock.Tick()
		ev.Time = env.clock.Now()
	}
	env.events.Publish(ev)
}

func (env *Env) issueID() uint32 {
	env.nextID++
	return env.nextID
}

func (env *Env) addSibling(e *Entity) {
	key := e.individual.ActivationKey
	list, _ := env.siblings.Get(key)
	if slices.Contains(list, e) {
		return
	}
	env.siblings.Put(key, append(list, e))
}

func (env *Env) removeSibling(e *Entity, key int32) {
	list, ok := env.siblings.Get(key)
	if !ok {
		return
	}
	if i := slices.Index(list, e); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		env.siblings.Del(key)
		return
	}
	env.siblings.Put(key, list)
}

// Siblings returns the live entities sharing an activation key
func (env *Env) Siblings(key int32) []*Entity {
	list, _ := env.siblings.Get(key)
	return list
}

// LineOfSight reports whether nothing static blocks from -> to
func (env *Env) LineOfSight(from, to geom.Vec3) bool {
	if env.spatial == nil {
		return false
	}
	_, blocked := env.spatial.LineTrace(from, to, world.ChannelVisibility)
	return !blocked
}

// OwnedTags returns the capability tags of an actor, empty without a dispatcher
func (env *Env) OwnedTags(h world.Handle) tags.Set {
	if env.dispatcher == nil || h.IsZero() {
		return tags.Set{}
	}
	return env.dispatcher.OwnedTags(h)
}

// Hit is one application of an effect container to one target
type Hit struct {
	Container     Container
	Target        world.Handle
	Instigator    world.Handle
	Origin        geom.Vec3
	ActivationKey int32
	Causer        uint32
	ContextTags   tags.Set
	CueTag        tags.Tag
	Scale         float64
	SkipCues      bool
}

// ApplyHit applies the container on the authoritative side and fires the
// executed cue on both sides. It returns the applied effect handles.
func (env *Env) ApplyHit(h Hit) []EffectHandle {
	target, ok := env.spatial.Actor(h.Target)
	if !ok {
		report(env.log, ErrNoCandidate, zap.Stringer("target", h.Target), zap.Int32("key", h.ActivationKey))
		return nil
	}
	impact := target.Location
	if hit, blocked := env.spatial.LineTrace(h.Origin, target.Location, world.ChannelVisibility); blocked {
		impact = hit.Location
	}
	if !h.SkipCues && h.CueTag != "" {
		env.FireCue(h.CueTag, CueExecuted, CueParams{
			Location:   impact,
			Target:     h.Target,
			Instigator: h.Instigator,
			Scale:      h.Scale,
		})
	}
	if !env.authority || env.dispatcher == nil {
		return nil
	}

	applied := env.dispatcher.ApplyEffectContainer(h.Container, h.Target)
	payload := Payload{
		Instigator:     h.Instigator,
		Target:         h.Target,
		Magnitude:      1,
		InstigatorTags: env.OwnedTags(h.Instigator).Merge(h.ContextTags),
		TargetTags:     target.Tags,
		Origin:         h.Origin,
		Impact:         impact,
		Causer:         h.Causer,
		ActivationKey:  h.ActivationKey,
	}
	if !h.Instigator.IsZero() {
		env.dispatcher.HandleEvent(h.Instigator, TagEventHit, payload)
	}
	env.dispatcher.HandleEvent(h.Target, TagEventHit, payload)
	env.Publish(Event{
		Kind:          EventHit,
		ActivationKey: h.ActivationKey,
		Entity:        h.Causer,
		Instigator:    h.Instigator,
		Target:        h.Target,
		Magnitude:     1,
		Tags:          h.ContextTags.Strings(),
	})
	return applied
}

// SendMultiHit tells the instigator how many targets one cast affected
func (env *Env) SendMultiHit(key int32, instigator world.Handle, count int, ctx tags.Set) {
	if count <= 0 || !env.authority {
		return
	}
	if env.dispatcher != nil && !instigator.IsZero() {
		env.dispatcher.HandleEvent(instigator, TagEventMultiHit, Payload{
			Instigator:     instigator,
			Magnitude:      float64(count),
			InstigatorTags: env.OwnedTags(instigator).Merge(ctx),
			ActivationKey:  key,
		})
	}
	env.Publish(Event{
		Kind:          EventMultiHit,
		ActivationKey: key,
		Instigator:    instigator,
		Magnitude:     float64(count),
		Tags:          ctx.Strings(),
	})
}

// FireCue forwards to the cue handler. Observers never see the instigator.
func (env *Env) FireCue(tag tags.Tag, kind CueEvent, p CueParams) {
	if env.cues == nil || tag == "" {
		return
	}
	p.Authoritative = env.authority
	if !env.authority {
		p.Instigator = world.Handle{}
	}
	env.cues.HandleCue(tag, kind, p)
}
