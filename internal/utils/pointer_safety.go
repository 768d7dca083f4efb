package utils

func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a shallow copy of the pointed-to value, or nil.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
