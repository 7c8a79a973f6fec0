//go:build darwin

package platform

// newPlatformOps returns hdiutil/diskutil based disk operations on macOS.
func newPlatformOps() (DiskOps, error) {
	return darwinOps{}, nil
}
