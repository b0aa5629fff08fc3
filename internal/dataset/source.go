// Maps dotted names to source functions.

package dataset

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// Func produces the content of a Dataset from its call arguments.
type Func func(args []any, kws map[string]any) (Payload, error)

// Adapt turns a function returning a plain value into a Func. A returned
// *table.Table becomes a table payload, anything else an opaque one.
func Adapt(fn func(args []any, kws map[string]any) (any, error)) Func {
	return func(args []any, kws map[string]any) (Payload, error) {
		v, err := fn(args, kws)
		if err != nil {
			return Payload{}, err
		}
		return Opaque(v), nil
	}
}

// Resolver maps a dotted name such as "exa.reference.load_isotopes" to a
// source function.
type Resolver interface {
	Resolve(name string) (Func, error)
}

// Resolution errors. Both are wrapped with the offending name.
var (
	ErrUnknownModule    = errors.New("unknown module")
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Registry is a Resolver backed by explicitly registered functions,
// grouped by module.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]map[string]Func
	// names holds the names registered per entry point. More than one
	// means the entry point is shared and cannot name a function.
	names map[uintptr]map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]map[string]Func),
		names:   make(map[uintptr]map[string]bool),
	}
}

// DefaultRegistry is the registry used by datasets without an explicit
// resolver.
var DefaultRegistry = NewRegistry()

// Register adds fn under name, split on its last dot into module and
// attribute. Registering a name twice replaces the earlier function.
func (r *Registry) Register(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("cannot register nil function as %q", name)
	}
	mod, attr, err := splitName(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.modules[mod]
	if m == nil {
		m = make(map[string]Func)
		r.modules[mod] = m
	}
	if old, ok := m[attr]; ok {
		pc := funcPC(old)
		delete(r.names[pc], name)
		if len(r.names[pc]) == 0 {
			delete(r.names, pc)
		}
	}
	m[attr] = fn
	pc := funcPC(fn)
	if r.names[pc] == nil {
		r.names[pc] = make(map[string]bool)
	}
	r.names[pc][name] = true
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package initialization.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Resolve returns the function registered under name.
func (r *Registry) Resolve(name string) (Func, error) {
	mod, attr, err := splitName(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[mod]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModule, mod)
	}
	fn, ok := m[attr]
	if !ok {
		return nil, fmt.Errorf("%w %q in module %q", ErrUnknownAttribute, attr, mod)
	}
	return fn, nil
}

// Names returns every registered dotted name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for mod, m := range r.modules {
		for attr := range m {
			out = append(out, mod+"."+attr)
		}
	}
	slices.Sort(out)
	return out
}

// NameOf returns the dotted name fn was registered under. It returns "" when
// fn shares its entry point with functions registered under other names, as
// closures from one literal do (every Adapt result among them). Unregistered
// functions are named by their Go symbol, which may not resolve.
func (r *Registry) NameOf(fn Func) string {
	if fn == nil {
		return ""
	}
	pc := funcPC(fn)
	r.mu.RLock()
	names := r.names[pc]
	count := len(names)
	var name string
	for n := range names {
		name = n
	}
	r.mu.RUnlock()
	switch count {
	case 0:
	case 1:
		return name
	default:
		return ""
	}
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return ""
}

// MultiResolver tries each resolver in turn and returns the first match.
type MultiResolver []Resolver

// Resolve implements Resolver.
func (m MultiResolver) Resolve(name string) (Func, error) {
	var errs []error
	for _, r := range m {
		fn, err := r.Resolve(name)
		if err == nil {
			return fn, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w %q", ErrUnknownModule, name)
	}
	return nil, errors.Join(errs...)
}

func splitName(name string) (mod, attr string, err error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("invalid source name %q: want module.attribute", name)
	}
	return name[:i], name[i+1:], nil
}

// funcPC returns the entry point of fn. Closures created by the same literal
// share it.
func funcPC(fn Func) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
