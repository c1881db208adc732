package model

// Result is the outcome of a query or reconciliation. Exactly one entity collapses to the
// single form; zero or several stay a list.
type Result struct {
	one    Entity
	many   []Entity
	single bool
}

// One wraps a single entity.
func One(e Entity) Result { return Result{one: e, single: true} }

// Many wraps a list of entities without collapsing it.
func Many(es []Entity) Result {
	if es == nil {
		es = []Entity{}
	}
	return Result{many: es}
}

// Collapse applies the single/plural rule: one entity becomes One, anything else Many.
func Collapse(es []Entity) Result {
	if len(es) == 1 {
		return One(es[0])
	}
	return Many(es)
}

// IsOne reports whether the result holds a single unwrapped entity.
func (r Result) IsOne() bool { return r.single }

// One returns the single entity when the result is in single form.
func (r Result) One() (Entity, bool) {
	if !r.single {
		return nil, false
	}
	return r.one, true
}

// Many returns the list form, or nil if the result was collapsed to one entity.
func (r Result) Many() []Entity {
	if r.single {
		return nil
	}
	return r.many
}

// All returns every entity regardless of form.
func (r Result) All() []Entity {
	if r.single {
		return []Entity{r.one}
	}
	return r.many
}

// Len is the number of entities held.
func (r Result) Len() int {
	if r.single {
		return 1
	}
	return len(r.many)
}

// Empty reports whether the result holds nothing.
func (r Result) Empty() bool { return r.Len() == 0 }
