package resource

// Handle is a descriptor number. Unlike component handles, 0 is valid:
// it is stdin.
type Handle uint32

// Kind tags what a handle refers to.
type Kind uint8

const (
	KindStdio Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindStdio:
		return "stdio"
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// EventType is a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnResourceEvent calls f.
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by values that need cleanup when
// their handle is removed.
type Dropper interface {
	Drop()
}
