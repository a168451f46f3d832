package equation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// EventKind identifies a manager notification.
type EventKind int

const (
	EquationAdded EventKind = iota
	EquationRemoving
	EquationRemoved
	EquationUpdated
	EquationGroupAdded
	EquationGroupRemoving
	EquationGroupUpdated
)

var eventKindNames = [...]string{
	EquationAdded:         "EquationAdded",
	EquationRemoving:      "EquationRemoving",
	EquationRemoved:       "EquationRemoved",
	EquationUpdated:       "EquationUpdated",
	EquationGroupAdded:    "EquationGroupAdded",
	EquationGroupRemoving: "EquationGroupRemoving",
	EquationGroupUpdated:  "EquationGroupUpdated",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// EquationField is a bitmask of the equation attributes an update changed.
type EquationField uint32

const (
	FieldContent      EquationField = 0x01
	FieldType         EquationField = 0x02
	FieldStatus       EquationField = 0x04
	FieldMessage      EquationField = 0x08
	FieldDependencies EquationField = 0x10
	FieldValue        EquationField = 0x20
)

var equationFieldNames = []struct {
	field EquationField
	name  string
}{
	{FieldContent, "content"},
	{FieldType, "type"},
	{FieldStatus, "status"},
	{FieldMessage, "message"},
	{FieldDependencies, "dependencies"},
	{FieldValue, "value"},
}

// Has reports whether every bit of f is set.
func (fs EquationField) Has(f EquationField) bool {
	return fs&f == f
}

func (fs EquationField) String() string {
	var parts []string
	for _, n := range equationFieldNames {
		if fs.Has(n.field) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// GroupField is a bitmask of the group attributes an update changed.
type GroupField uint32

const (
	FieldStatement GroupField = 0x01
	FieldEquations GroupField = 0x02
)

// Has reports whether every bit of f is set.
func (fs GroupField) Has(f GroupField) bool {
	return fs&f == f
}

// Event is delivered to subscribers after, or for the *Removing kinds
// just before, a change. Equation events carry Equation; group events
// carry Group.
type Event struct {
	Kind        EventKind
	Name        string
	GroupID     uuid.UUID
	Equation    *Equation
	Group       *Group
	Fields      EquationField
	GroupFields GroupField
}

// Listener receives manager events on the goroutine that caused them.
type Listener func(Event)

type bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

func newBus() *bus {
	return &bus{listeners: make(map[int]Listener)}
}

func (b *bus) subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, o := range b.order {
				if o == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
