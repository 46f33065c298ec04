package observability

// FilterAllows exposes the attribute allow-list for tests.
func FilterAllows(key string) bool {
	filter := &attributeFilter{}

	return filter.isAllowed(key)
}
