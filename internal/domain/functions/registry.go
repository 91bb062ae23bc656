package functions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
)

// Registry maps names to pure functions callable from call_function actions.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]engine.Function
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]engine.Function)}
}

func (r *Registry) Register(name string, fn engine.Function) error {
	if name == "" || fn == nil {
		return fmt.Errorf("function name and body are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fns[name]; exists {
		return fmt.Errorf("function %q already registered", name)
	}
	r.fns[name] = fn
	return nil
}

func (r *Registry) MustRegister(name string, fn engine.Function) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (engine.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for n := range r.fns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Errorf builds the error value functions return instead of failing.
func Errorf(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// IsError reports whether v is an error value returned by a function.
func IsError(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m["error"]
	if !ok {
		return "", false
	}
	return fmt.Sprint(msg), true
}
