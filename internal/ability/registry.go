package ability

import "fmt"

// Registry holds the abilities available to an agent, indexed by their
// sanitized function identifier. Registration order is preserved so
// declarations reach the model in a stable order.
type Registry struct {
	order  []string
	byID   map[string]*Ability
	idFor  map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Ability),
		idFor: make(map[string]string),
	}
}

// Register adds an ability. Two distinct source names that sanitize to
// the same identifier would leave the model unable to address one of
// them, so any collision is a registration error.
func (r *Registry) Register(ab *Ability) error {
	if ab == nil || ab.Name == "" {
		return fmt.Errorf("ability: cannot register an unnamed ability")
	}
	if ab.Execute == nil {
		return fmt.Errorf("ability: %s has no execute handler", ab.Name)
	}

	id := SanitizeName(ab.Name)
	if existing, ok := r.byID[id]; ok {
		return &ErrNameCollision{ID: id, First: existing.Name, Second: ab.Name}
	}

	r.order = append(r.order, id)
	r.byID[id] = ab
	r.idFor[ab.Name] = id
	return nil
}

// MustRegister is Register for static setup code, where a collision is
// a programming error.
func (r *Registry) MustRegister(ab *Ability) {
	if err := r.Register(ab); err != nil {
		panic(err)
	}
}

// Find returns the ability registered under the sanitized identifier,
// or nil if none matches.
func (r *Registry) Find(id string) *Ability {
	return r.byID[id]
}

// IDFor returns the sanitized identifier for a source name, and whether
// the name is registered.
func (r *Registry) IDFor(sourceName string) (string, bool) {
	id, ok := r.idFor[sourceName]
	return id, ok
}

// Len returns the number of registered abilities.
func (r *Registry) Len() int {
	return len(r.order)
}

// Declarations returns the function declarations for the model, in
// registration order.
func (r *Registry) Declarations() []Declaration {
	decls := make([]Declaration, 0, len(r.order))
	for _, id := range r.order {
		ab := r.byID[id]
		params := ab.InputSchema
		if len(params) == 0 {
			params = emptySchema()
		}
		decls = append(decls, Declaration{
			Name:        id,
			Description: ab.Description,
			Parameters:  params,
		})
	}
	return decls
}
