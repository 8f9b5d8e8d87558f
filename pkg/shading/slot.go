package shading

// Slot holds the shading model owned by an engine. Setting a model replaces
// the previous one; the slot never shares a model with its caller.
type Slot struct {
	model Model
	set   bool
}

// NewSlot returns a slot holding m
func NewSlot(m Model) Slot { return Slot{model: m, set: true} }

// Set replaces the held model
func (s *Slot) Set(m Model) {
	s.model = m
	s.set = true
}

// Clear empties the slot
func (s *Slot) Clear() { *s = Slot{} }

// Get returns the held model and whether one is set
func (s *Slot) Get() (Model, bool) { return s.model, s.set }

// IsSet reports whether a model is held
func (s *Slot) IsSet() bool { return s.set }
