package workspace

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidHandler is returned when registering an unnamed or nil handler.
var ErrInvalidHandler = errors.New("invalid handler: name and handler are required")

// Descriptor is a registered handler.
type Descriptor struct {
	Name     string
	Priority int
	Handler  Handler

	seq uint64
}

// Seq returns the registration sequence number, used to break priority ties.
func (d Descriptor) Seq() uint64 { return d.seq }

// Registry holds the handlers taking part in a switch.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Descriptor
	nextSeq  uint64
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Descriptor),
		logger:   logger,
	}
}

// Register adds a handler, replacing any handler with the same name.
// A replacement takes a new sequence number, so it sorts after handlers of
// equal priority registered before it.
func (r *Registry) Register(name string, priority int, h Handler) error {
	if name == "" || h == nil {
		return ErrInvalidHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.handlers[name]; ok {
		r.logger.Warn("replacing workspace handler",
			zap.String("handler", name),
			zap.Int("old_priority", old.Priority),
			zap.Int("new_priority", priority),
		)
	}

	r.nextSeq++
	r.handlers[name] = Descriptor{
		Name:     name,
		Priority: priority,
		Handler:  h,
		seq:      r.nextSeq,
	}
	return nil
}

// Unregister removes a handler and reports whether it was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; !ok {
		return false
	}
	delete(r.handlers, name)
	return true
}

// List returns a snapshot ordered by priority, then registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.handlers))
	for _, d := range r.handlers {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Names returns handler names in execution order.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.Name
	}
	return names
}
