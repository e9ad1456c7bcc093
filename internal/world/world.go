package world

import (
	"fmt"
	"slices"

	"effects-server/internal/geom"
	"effects-server/internal/tags"
)

const (
	DefaultWidth    = 4000.0
	DefaultHeight   = 4000.0
	DefaultCellSize = 80.0 // ~2x a large actor radius
)

// Handle is a generation-checked reference into the actor arena.
// A handle to a despawned actor stays invalid even after its slot is reused.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether h is the zero handle (never valid)
func (h Handle) IsZero() bool { return h.Gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%d#%d", h.Index, h.Gen)
}

// Actor is a targetable world entity
type Actor struct {
	Handle     Handle
	Class      string
	Location   geom.Vec3
	Yaw        float64
	Radius     float64 // capsule radius
	Scale      float64
	Team       int
	Tags       tags.Set
	Health     float64
	MaxHealth  float64
	Attributes map[string]float64
}

// Alive reports whether the actor can still be affected
func (a Actor) Alive() bool {
	return a.MaxHealth <= 0 || a.Health > 0
}

// Attribute returns a named attribute or def when unset
func (a Actor) Attribute(name string, def float64) float64 {
	if v, ok := a.Attributes[name]; ok {
		return v
	}
	return def
}

// Blocker is static cylindrical geometry that stops line traces
type Blocker struct {
	Center geom.Vec3
	Radius float64
}

type slot struct {
	gen   uint32
	live  bool
	stamp uint32
	actor Actor
}

// World is the actor arena plus its broad-phase index
type World struct {
	width, height float64
	slots         []slot
	free          []uint32
	live          int
	grid          *SpatialGrid
	dirty         bool
	blockers      []Blocker
	queryStamp    uint32
	buf           []Handle
}

// New creates an empty world
func New(width, height float64) *World {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &World{
		width:  width,
		height: height,
		grid:   NewSpatialGrid(width, height, DefaultCellSize),
	}
}

// Spawn adds an actor and returns its handle
func (w *World) Spawn(a Actor) Handle {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		w.slots = append(w.slots, slot{})
		idx = uint32(len(w.slots) - 1)
	}
	s := &w.slots[idx]
	s.gen++
	s.live = true
	if a.Scale == 0 {
		a.Scale = 1
	}
	a.Handle = Handle{Index: idx, Gen: s.gen}
	s.actor = a
	w.live++
	w.dirty = true
	return a.Handle
}

// Despawn removes an actor; its handle becomes invalid
func (w *World) Despawn(h Handle) bool {
	s := w.slot(h)
	if s == nil {
		return false
	}
	s.live = false
	s.actor = Actor{}
	w.free = append(w.free, h.Index)
	w.live--
	w.dirty = true
	return true
}

func (w *World) slot(h Handle) *slot {
	if h.IsZero() || int(h.Index) >= len(w.slots) {
		return nil
	}
	s := &w.slots[h.Index]
	if !s.live || s.gen != h.Gen {
		return nil
	}
	return s
}

// Valid reports whether h still refers to a live actor
func (w *World) Valid(h Handle) bool { return w.slot(h) != nil }

// Actor returns a copy of the actor behind h
func (w *World) Actor(h Handle) (Actor, bool) {
	s := w.slot(h)
	if s == nil {
		return Actor{}, false
	}
	return s.actor, true
}

// Update mutates the actor behind h in place
func (w *World) Update(h Handle, fn func(a *Actor)) bool {
	s := w.slot(h)
	if s == nil {
		return false
	}
	before := s.actor.Location
	fn(&s.actor)
	s.actor.Handle = h
	if s.actor.Location != before {
		w.dirty = true
	}
	return true
}

// Move sets an actor's location
func (w *World) Move(h Handle, loc geom.Vec3) bool {
	return w.Update(h, func(a *Actor) { a.Location = loc })
}

// Len returns the number of live actors
func (w *World) Len() int { return w.live }

// Each visits every live actor in handle order
func (w *World) Each(fn func(a Actor)) {
	for i := range w.slots {
		if w.slots[i].live {
			fn(w.slots[i].actor)
		}
	}
}

// AddBlocker registers static geometry for line traces
func (w *World) AddBlocker(b Blocker) {
	w.blockers = append(w.blockers, b)
}

func (w *World) rebuild() {
	if !w.dirty {
		return
	}
	w.grid.Clear()
	for i := range w.slots {
		s := &w.slots[i]
		if s.live {
			w.grid.InsertCircle(s.actor.Location.X, s.actor.Location.Y, s.actor.Radius, s.actor.Handle)
		}
	}
	w.dirty = false
}

func matchesClass(a Actor, classes []string) bool {
	if len(classes) == 0 {
		return true
	}
	return slices.Contains(classes, a.Class)
}

// overlap gathers live actors whose capsule touches shape placed at center.
func (w *World) overlap(shape geom.Shape, center geom.Vec3, yaw float64, classes []string, ignore []Handle) []Handle {
	w.rebuild()
	w.queryStamp++
	w.buf = w.grid.QueryBuf(center.X, center.Y, shape.BoundingRadius()+maxActorRadius, w.buf[:0])

	var out []Handle
	for _, h := range w.buf {
		s := w.slot(h)
		if s == nil || s.stamp == w.queryStamp {
			continue
		}
		s.stamp = w.queryStamp
		a := s.actor
		if !a.Alive() || !matchesClass(a, classes) || slices.Contains(ignore, h) {
			continue
		}
		if shape.Overlaps(center, yaw, a.Location, a.Radius) {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b Handle) int { return int(a.Index) - int(b.Index) })
	return out
}

// maxActorRadius pads broad-phase queries so large capsules near a cell edge are found.
const maxActorRadius = DefaultCellSize

// SphereOverlap returns live actors touching the sphere
func (w *World) SphereOverlap(center geom.Vec3, radius float64, classes []string, ignore []Handle) []Handle {
	return w.overlap(geom.Sphere(radius), center, 0, classes, ignore)
}

// OrientedBoxOverlap returns live actors touching a box with half extents rotated by yaw degrees
func (w *World) OrientedBoxOverlap(center, extent geom.Vec3, yaw float64, classes []string, ignore []Handle) []Handle {
	return w.overlap(geom.Box(extent), center, yaw, classes, ignore)
}
