package replication

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"effects-server/internal/effect"
	"effects-server/internal/geom"
	"effects-server/internal/world"
)

// FrameKind tells a replica how to treat a frame
type FrameKind uint8

const (
	// FrameSnapshot carries the full live state; replicas start over from it
	FrameSnapshot FrameKind = iota + 1
	// FrameDelta carries what changed since the previous frame
	FrameDelta
)

// ActorState is the observer view of one actor
type ActorState struct {
	Handle    world.Handle `msgpack:"h"`
	Class     string       `msgpack:"c"`
	Team      int          `msgpack:"team"`
	Location  geom.Vec3    `msgpack:"loc"`
	Yaw       float64      `msgpack:"yaw"`
	Health    float64      `msgpack:"hp"`
	MaxHealth float64      `msgpack:"mhp"`
}

// Frame is one replication message sent to observers
type Frame struct {
	Kind              FrameKind               `msgpack:"k"`
	Tick              uint64                  `msgpack:"tick"`
	Time              float64                 `msgpack:"t"`
	SharedAdded       []effect.SharedData     `msgpack:"sa,omitempty"`
	SharedRemoved     []int32                 `msgpack:"sr,omitempty"`
	IndividualAdded   []effect.IndividualData `msgpack:"ia,omitempty"`
	IndividualRemoved []effect.IndividualData `msgpack:"ir,omitempty"`
	Events            []effect.Event          `msgpack:"ev,omitempty"`
	Actors            []ActorState            `msgpack:"ac,omitempty"`
}

// Empty reports whether a delta frame has nothing to say
func (f *Frame) Empty() bool {
	return len(f.SharedAdded) == 0 && len(f.SharedRemoved) == 0 &&
		len(f.IndividualAdded) == 0 && len(f.IndividualRemoved) == 0 &&
		len(f.Events) == 0 && len(f.Actors) == 0
}

// Encode serializes f for the wire
func Encode(f *Frame) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	return data, nil
}

// Decode parses a frame received from the wire
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Kind != FrameSnapshot && f.Kind != FrameDelta {
		return nil, fmt.Errorf("decode frame: unknown kind %d", f.Kind)
	}
	return &f, nil
}
