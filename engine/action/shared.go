package action

// SharedData is a key/value bag created fresh for each capability
// dispatch, so validation-time findings reach the later phases.
type SharedData struct {
	values map[string]any
}

// NewSharedData returns an empty bag.
func NewSharedData() *SharedData {
	return &SharedData{values: map[string]any{}}
}

// Put stores a value.
func Put[T any](s *SharedData, key string, v T) {
	s.values[key] = v
}

// Get returns a value of the expected type.
func Get[T any](s *SharedData, key string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	v, ok := s.values[key].(T)
	return v, ok
}

// Has reports whether key is set.
func (s *SharedData) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}
