package effect

import (
	"effects-server/internal/tags"
	"effects-server/internal/world"
)

// EventKind names a published runtime event
type EventKind string

const (
	EventActivated         EventKind = "activated"
	EventDeactivated       EventKind = "deactivated"
	EventExpired           EventKind = "expired"
	EventRotationCompleted EventKind = "rotation_completed"
	EventHit               EventKind = "hit"
	EventMultiHit          EventKind = "multi_hit"
	EventQueueEmptied      EventKind = "queue_emptied"
)

// Event is observable by other subsystems (journal, replication feed, logs)
type Event struct {
	Kind          EventKind    `msgpack:"k"`
	Tick          uint64       `msgpack:"tick"`
	Time          float64      `msgpack:"t"`
	ActivationKey int32        `msgpack:"key,omitempty"`
	EventID       int32        `msgpack:"eid,omitempty"`
	Entity        uint32       `msgpack:"ent,omitempty"`
	Class         string       `msgpack:"class,omitempty"`
	Instigator    world.Handle `msgpack:"inst"`
	Target        world.Handle `msgpack:"tgt"`
	Magnitude     float64      `msgpack:"mag,omitempty"`
	Tags          []string     `msgpack:"tags,omitempty"`
}

// Publisher receives runtime events
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

type discardPublisher struct{}

func (discardPublisher) Publish(Event) {}

// Gameplay tags understood by the runtime
const (
	TagEventHit         tags.Tag = "Event.Hit"
	TagEventMultiHit    tags.Tag = "Event.MultiHit"
	TagEventActivate    tags.Tag = "Event.EffectEntity.Activate"
	TagEventDeactivate  tags.Tag = "Event.EffectEntity.Deactivate"
	TagIndividualTarget tags.Tag = "Ability.Targeting.IndividualTargeting"
	TagDisableExpire    tags.Tag = "Ability.Duration.DisableExpiration"
	TagTrap             tags.Tag = "Ability.Type.Trap"
	TagStartAtAvatar    tags.Tag = "Ability.Start.Actor.Avatar"
)
