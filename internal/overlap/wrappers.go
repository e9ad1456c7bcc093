package overlap

import (
	"slices"

	"effects-server/internal/world"
)

// WrapperID keys the targets of one overlap instance
type WrapperID struct {
	EventID   int32
	OverlapID int32
}

// TargetWrappers records which actors each overlap instance already affected
type TargetWrappers struct {
	targets map[WrapperID][]world.Handle
}

func newTargetWrappers() *TargetWrappers {
	return &TargetWrappers{targets: make(map[WrapperID][]world.Handle)}
}

// Add records hs for id
func (w *TargetWrappers) Add(id WrapperID, hs ...world.Handle) {
	list := w.targets[id]
	for _, h := range hs {
		if !slices.Contains(list, h) {
			list = append(list, h)
		}
	}
	w.targets[id] = list
}

// Targets returns the actors recorded for id
func (w *TargetWrappers) Targets(id WrapperID) []world.Handle {
	return w.targets[id]
}

// Ignored returns the actors a new query of the event must skip. A negative
// overlap id collects every instance of the event.
func (w *TargetWrappers) Ignored(eventID, overlapID int32) []world.Handle {
	if overlapID >= 0 {
		return slices.Clone(w.targets[WrapperID{eventID, overlapID}])
	}
	var out []world.Handle
	for id, list := range w.targets {
		if id.EventID != eventID {
			continue
		}
		for _, h := range list {
			if !slices.Contains(out, h) {
				out = append(out, h)
			}
		}
	}
	return out
}

// Remove drops the targets of one instance, or of all instances when overlapID
// is negative, and returns how many distinct actors were dropped
func (w *TargetWrappers) Remove(eventID, overlapID int32) int {
	n := len(w.Ignored(eventID, overlapID))
	if overlapID >= 0 {
		delete(w.targets, WrapperID{eventID, overlapID})
		return n
	}
	for id := range w.targets {
		if id.EventID == eventID {
			delete(w.targets, id)
		}
	}
	return n
}

// Len returns the number of tracked instances
func (w *TargetWrappers) Len() int { return len(w.targets) }
