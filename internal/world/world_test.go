package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/geom"
)

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(DefaultWidth, DefaultHeight, DefaultCellSize)
	h := Handle{Index: 0, Gen: 1}
	grid.Insert(100, 100, h)

	assert.Contains(t, grid.QueryBuf(100, 100, 50, nil), h)
	assert.NotContains(t, grid.QueryBuf(3000, 3000, 50, nil), h)

	grid.Clear()
	assert.Empty(t, grid.QueryBuf(100, 100, 50, nil))
}

func TestSpatialGridBoundaryClamp(t *testing.T) {
	grid := NewSpatialGrid(DefaultWidth, DefaultHeight, DefaultCellSize)
	a := Handle{Index: 0, Gen: 1}
	b := Handle{Index: 1, Gen: 1}

	// Negative coords clamp to the first cell, far coords to the last.
	grid.Insert(-10, -10, a)
	grid.Insert(5000, 5000, b)

	assert.Contains(t, grid.QueryBuf(0, 0, 50, nil), a)
	assert.Contains(t, grid.QueryBuf(DefaultWidth, DefaultHeight, 50, nil), b)
}

func TestHandleGenerationCheck(t *testing.T) {
	w := New(0, 0)
	h := w.Spawn(Actor{Class: "enemy", Radius: 10})
	require.True(t, w.Valid(h))

	require.True(t, w.Despawn(h))
	assert.False(t, w.Valid(h))

	// Slot is reused, but the old handle stays dead.
	h2 := w.Spawn(Actor{Class: "enemy", Radius: 10})
	assert.Equal(t, h.Index, h2.Index)
	assert.NotEqual(t, h.Gen, h2.Gen)
	_, ok := w.Actor(h)
	assert.False(t, ok)
	_, ok = w.Actor(h2)
	assert.True(t, ok)
}

func TestSphereOverlapUsesCapsuleRadius(t *testing.T) {
	w := New(0, 0)
	near := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 500, Y: 500}, Radius: 20})
	edge := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 615, Y: 500}, Radius: 20})
	far := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 700, Y: 500}, Radius: 20})

	got := w.SphereOverlap(geom.Vec3{X: 500, Y: 500}, 100, nil, nil)
	assert.Equal(t, []Handle{near, edge}, got)
	assert.NotContains(t, got, far)
}

func TestSphereOverlapFiltersAndIgnores(t *testing.T) {
	w := New(0, 0)
	enemy := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 100, Y: 100}, Radius: 10})
	ally := w.Spawn(Actor{Class: "player", Location: geom.Vec3{X: 110, Y: 100}, Radius: 10})
	dead := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 90, Y: 100}, Radius: 10, MaxHealth: 10})

	assert.Equal(t, []Handle{enemy}, w.SphereOverlap(geom.Vec3{X: 100, Y: 100}, 50, []string{"enemy"}, nil))
	assert.Equal(t, []Handle{ally}, w.SphereOverlap(geom.Vec3{X: 100, Y: 100}, 50, nil, []Handle{enemy}))
	assert.NotContains(t, w.SphereOverlap(geom.Vec3{X: 100, Y: 100}, 50, nil, nil), dead)
}

func TestOverlapSeesMovedActors(t *testing.T) {
	w := New(0, 0)
	h := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 100, Y: 100}, Radius: 10})
	require.Len(t, w.SphereOverlap(geom.Vec3{X: 100, Y: 100}, 20, nil, nil), 1)

	w.Move(h, geom.Vec3{X: 2000, Y: 2000})
	assert.Empty(t, w.SphereOverlap(geom.Vec3{X: 100, Y: 100}, 20, nil, nil))
	assert.Len(t, w.SphereOverlap(geom.Vec3{X: 2000, Y: 2000}, 20, nil, nil), 1)
}

func TestOrientedBoxOverlap(t *testing.T) {
	w := New(0, 0)
	h := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 1000, Y: 1150}, Radius: 10})
	extent := geom.Vec3{X: 200, Y: 20, Z: 100}

	assert.Empty(t, w.OrientedBoxOverlap(geom.Vec3{X: 1000, Y: 1000}, extent, 0, nil, nil))
	assert.Equal(t, []Handle{h}, w.OrientedBoxOverlap(geom.Vec3{X: 1000, Y: 1000}, extent, 90, nil, nil))
}

func TestLineTrace(t *testing.T) {
	w := New(0, 0)
	w.AddBlocker(Blocker{Center: geom.Vec3{X: 50}, Radius: 5})
	pawn := w.Spawn(Actor{Class: "enemy", Location: geom.Vec3{X: 30}, Radius: 5})

	hit, ok := w.LineTrace(geom.Vec3{}, geom.Vec3{X: 100}, ChannelVisibility)
	require.True(t, ok)
	assert.True(t, hit.Actor.IsZero())
	assert.InDelta(t, 45.0, hit.Location.X, 1e-9)

	hit, ok = w.LineTrace(geom.Vec3{}, geom.Vec3{X: 100}, ChannelPawn)
	require.True(t, ok)
	assert.Equal(t, pawn, hit.Actor)

	assert.False(t, w.HasLineOfSight(geom.Vec3{}, geom.Vec3{X: 100}))
	assert.True(t, w.HasLineOfSight(geom.Vec3{}, geom.Vec3{Y: 100}))
}
