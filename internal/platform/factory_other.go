//go:build !linux && !darwin

package platform

// newPlatformOps fails on platforms without a disk-management backend.
func newPlatformOps() (DiskOps, error) {
	return nil, ErrUnsupportedOS
}
