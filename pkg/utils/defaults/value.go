package defaults

// Value returns *v, or def when v is nil.
func Value[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
