package entities

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр типов сущностей.
//
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry создаёт реестр с переданными сущностями.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.Register(s)
	}
	return r
}

// DefaultRegistry создаёт реестр со всеми поддерживаемыми сущностями.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Senators(),
		Committees(),
		Votes(),
		Matters(),
	)
}

// Register регистрирует сущность.
// Если сущность с таким именем уже существует, она будет перезаписана.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// Get возвращает описание сущности по имени.
// Возвращает ErrUnknownEntity, если сущность не найдена.
func (r *Registry) Get(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return spec, nil
}

// Adapter создаёт Adapter для сущности.
func (r *Registry) Adapter(name string, src Getter) (*Adapter, error) {
	spec, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return NewAdapter(spec, src), nil
}

// Names возвращает отсортированный список сущностей.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Specs возвращает описания в порядке Names.
func (r *Registry) Specs() []Spec {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(names))
	for _, n := range names {
		out = append(out, r.specs[n])
	}
	return out
}
