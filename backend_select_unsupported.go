//go:build !unix

package reactor

// newSelectBackend's real implementation lives in backend_select.go (unix).
func newSelectBackend(maxHandles int) (backend, error) {
	return unsupportedBackend{m: Select}, nil
}
