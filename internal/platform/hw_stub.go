//go:build !amd64hw

package platform

import "errors"

// newHWBackend is the default (non-amd64hw) build: the hardware backend
// requires real ring0 access this build does not have.
func newHWBackend() (PageTableBackend, error) {
	return nil, errors.New("platform: hardware backend requires building with -tags amd64hw")
}
