package filters

// FormState holds the draft value of every configured field.
type FormState struct {
	values map[FieldName]Value
}

func newFormState(c *Catalog) FormState {
	f := FormState{values: make(map[FieldName]Value, c.Len())}
	for _, cfg := range c.fields {
		f.values[cfg.Field] = ZeroValue(cfg.Kind)
	}
	return f
}

// Get returns the draft value of field.
func (f FormState) Get(field FieldName) Value {
	return f.values[field]
}

// Len returns the number of fields held.
func (f FormState) Len() int {
	return len(f.values)
}

func (f FormState) clone() FormState {
	out := FormState{values: make(map[FieldName]Value, len(f.values))}
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

func (f FormState) set(field FieldName, v Value) {
	f.values[field] = v
}
