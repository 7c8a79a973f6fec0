//go:build linux

package platform

// newPlatformOps returns loop-device based disk operations on Linux.
func newPlatformOps() (DiskOps, error) {
	return linuxOps{}, nil
}
