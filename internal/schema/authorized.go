package schema

// AuthorizedFieldSet is the authorization layer's verdict on which
// fields the current request may filter on: either every field, or an
// explicit allow-list. It is resolved per request upstream and read
// here, never mutated.
type AuthorizedFieldSet struct {
	all    bool
	fields map[string]struct{}
}

// AllFields is the sentinel set under which every field is visible.
func AllFields() AuthorizedFieldSet {
	return AuthorizedFieldSet{all: true}
}

// FieldsNamed builds an explicit allow-list.
func FieldsNamed(names ...string) AuthorizedFieldSet {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return AuthorizedFieldSet{fields: set}
}

// Allows reports whether filtering on the named field is permitted.
func (s AuthorizedFieldSet) Allows(field string) bool {
	if s.all {
		return true
	}
	_, ok := s.fields[field]
	return ok
}

// All reports whether this is the all-fields sentinel.
func (s AuthorizedFieldSet) All() bool {
	return s.all
}
