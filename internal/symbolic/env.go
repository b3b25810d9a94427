package symbolic

// Env maps variable names to their symbolic values.
type Env struct {
	vars map[string]Expr
}

// NewEnv creates a new empty environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]Expr)}
}

// Get retrieves the value of a variable, or nil.
func (e *Env) Get(name string) Expr { return e.vars[name] }

// Set binds a variable.
func (e *Env) Set(name string, val Expr) { e.vars[name] = val }

// Clone creates a copy that can be updated independently. Values are
// immutable and shared.
func (e *Env) Clone() *Env {
	out := &Env{vars: make(map[string]Expr, len(e.vars))}
	for k, v := range e.vars {
		out.vars[k] = v
	}
	return out
}
