package overlap

import (
	"effects-server/internal/effect"
	"effects-server/internal/geom"
)

// BatchOverlapOffset separates the delayed twin of a batched snapshot from the original
const BatchOverlapOffset = 10000

// interpStepLength is the target spacing of scale-interpolation checks, in seconds
const interpStepLength = 0.15

// Snapshot is one scheduled spatial check. It is never mutated once queued.
type Snapshot struct {
	EventID               int32
	OverlapID             int32
	Period                int // repetition index for periodic events
	Location              geom.Vec3
	Yaw                   float64
	ActivationTime        float64
	InitialEventTime      float64
	DurationMultiplier    float64
	AreaMultiplier        float64
	InitialAvatarLocation geom.Vec3
}

// ID returns the (event, overlap) pair the snapshot belongs to
func (s Snapshot) ID() WrapperID {
	return WrapperID{EventID: s.EventID, OverlapID: s.OverlapID}
}

// Elapsed returns the seconds between the event start and this check
func (s Snapshot) Elapsed() float64 {
	return s.ActivationTime - s.InitialEventTime
}

// InterpSteps returns how many slices a scale-interpolated check of lifeSpan seconds is cut into
func InterpSteps(lifeSpan float64) int {
	return max(5, int(lifeSpan/interpStepLength))
}

// ExpandOverlapEvent spreads s over lifeSpan seconds as steps+1 evenly spaced snapshots
func ExpandOverlapEvent(s Snapshot, lifeSpan float64, steps int) []Snapshot {
	if steps <= 0 || lifeSpan <= 0 {
		return []Snapshot{s}
	}
	out := make([]Snapshot, 0, steps+1)
	step := lifeSpan / float64(steps)
	for i := 0; i <= steps; i++ {
		e := s
		e.ActivationTime = s.ActivationTime + float64(i)*step
		out = append(out, e)
	}
	return out
}

// GeneratePeriodic repeats snaps every period for the lifetime of d. The input
// is returned unchanged when d is not periodic.
func GeneratePeriodic(snaps []Snapshot, d effect.Duration) []Snapshot {
	if d.LifeSpan <= 0 || d.Period <= 0 || d.FirstPeriodDelay > d.LifeSpan {
		return snaps
	}
	reps := d.MaxPeriods()
	out := make([]Snapshot, 0, len(snaps)*reps)
	for r := 0; r < reps; r++ {
		shift := d.FirstPeriodDelay + float64(r)*d.Period
		for _, s := range snaps {
			e := s
			e.ActivationTime += shift
			e.Period = r
			out = append(out, e)
		}
	}
	return out
}
