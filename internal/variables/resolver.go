package variables

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Mapping declares one variable transfer. Target defaults to Source. When
// Expression is set it wins over Source.
type Mapping struct {
	Source     string `json:"source,omitempty"`
	Target     string `json:"target,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (m Mapping) target() string {
	if m.Target != "" {
		return m.Target
	}
	return m.Source
}

// Validate reports mappings that can never produce a value.
func (m Mapping) Validate() error {
	if m.target() == "" {
		return fmt.Errorf("mapping needs a target or source")
	}
	if m.Source == "" && strings.TrimSpace(m.Expression) == "" {
		return fmt.Errorf("mapping %q needs a source or expression", m.target())
	}
	return nil
}

// Resolver applies mappings. Compiled expressions are cached and shared
// between goroutines.
type Resolver struct {
	mu       sync.RWMutex
	env      *cel.Env
	envErr   error
	programs map[string]cel.Program
}

// NewResolver returns a Resolver with an empty program cache.
func NewResolver() *Resolver {
	env, err := cel.NewEnv(cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)))
	return &Resolver{env: env, envErr: err, programs: map[string]cel.Program{}}
}

// ResolveInput computes the variables handed to a worker. Without mappings
// every instance variable is passed through.
func (r *Resolver) ResolveInput(instanceVars map[string]any, mappings []Mapping) (map[string]any, error) {
	if len(mappings) == 0 {
		return copyVars(instanceVars), nil
	}
	return r.apply(instanceVars, mappings)
}

// ResolveOutput computes the variables written back to the scope instance.
// Without mappings every worker variable survives; with mappings only the
// mapped targets do.
func (r *Resolver) ResolveOutput(workerVars map[string]any, mappings []Mapping) (map[string]any, error) {
	if len(mappings) == 0 {
		return copyVars(workerVars), nil
	}
	return r.apply(workerVars, mappings)
}

// Compile checks expr and caches the program.
func (r *Resolver) Compile(expr string) error {
	_, err := r.program(expr)
	return err
}

func (r *Resolver) apply(src map[string]any, mappings []Mapping) (map[string]any, error) {
	out := make(map[string]any, len(mappings))
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(m.Expression) == "" {
			out[m.target()] = src[m.Source]
			continue
		}
		v, err := r.eval(m.Expression, src)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", m.target(), err)
		}
		out[m.target()] = v
	}
	return out, nil
}

func (r *Resolver) eval(expr string, src map[string]any) (any, error) {
	prog, err := r.program(expr)
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = map[string]any{}
	}
	val, _, err := prog.Eval(map[string]any{"vars": src})
	if err != nil {
		return nil, err
	}
	return native(val), nil
}

func (r *Resolver) program(expr string) (cel.Program, error) {
	if r.envErr != nil {
		return nil, r.envErr
	}
	r.mu.RLock()
	prog, ok := r.programs[expr]
	r.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, iss := r.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := r.env.Program(ast)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.programs[expr] = prog
	r.mu.Unlock()
	return prog, nil
}

// native turns CEL values into plain Go values that encode cleanly as JSON.
func native(v ref.Val) any {
	switch v.Type() {
	case types.NullType:
		return nil
	case types.ListType:
		l := v.(traits.Lister)
		var out []any
		for it := l.Iterator(); it.HasNext() == types.True; {
			out = append(out, native(it.Next()))
		}
		if out == nil {
			out = []any{}
		}
		return out
	case types.MapType:
		m := v.(traits.Mapper)
		out := map[string]any{}
		for it := m.Iterator(); it.HasNext() == types.True; {
			k := it.Next()
			out[fmt.Sprint(native(k))] = native(m.Get(k))
		}
		return out
	default:
		return v.Value()
	}
}

func copyVars(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
