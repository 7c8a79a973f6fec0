package platform

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedOS     = errors.New("no disk operations available for this OS")
	ErrNoAttachedDisk    = errors.New("could not find attached disk in attach output")
	ErrPartitionNotFound = errors.New("partition not found")
)

// DiskOps is the set of OS disk-management operations the pipelines need.
// There is one implementation per supported OS family: loop-device semantics
// on Linux (losetup/mount/blkid) and virtual-disk-image semantics on macOS
// (hdiutil/diskutil). Everything platform-specific, including command
// invocation and output parsing, stays behind this interface.
type DiskOps interface {
	// AttachImage binds an image file to a block device and returns the raw
	// output of the underlying attach command for diagnostics.
	AttachImage(ctx context.Context, imagePath string) (string, error)

	// ParseAttachedDisk extracts the disk identifier (e.g. /dev/loop3 or
	// /dev/disk4) from attach output. Returns "" if none is found.
	ParseAttachedDisk(attachOutput string) string

	// FirstPartition resolves the device path of the disk's first partition.
	FirstPartition(disk string) (string, error)

	// PartitionExists reports whether the partition device node is present.
	// Any probe error is treated as "not found".
	PartitionExists(partition string) bool

	// FilesystemType returns the lower-cased filesystem type of a partition,
	// or "" when the probe cannot determine one.
	FilesystemType(ctx context.Context, partition string) (string, error)

	// MountPartition mounts the partition at the given directory.
	MountPartition(ctx context.Context, partition, mountDir string) error

	// UnmountDir unmounts whatever is mounted at the given directory.
	UnmountDir(ctx context.Context, mountDir string) error

	// DetachDisk releases the block device created by AttachImage.
	DetachDisk(ctx context.Context, disk string) error

	// UnmountDevice unmounts every mounted partition of a whole device,
	// innermost mount points first. Individual failures are logged, not
	// returned: the device may simply not be mounted.
	UnmountDevice(ctx context.Context, device string) error

	// Sync flushes all pending writes to stable storage.
	Sync()

	// SupportsReadback reports whether reading a block device back right
	// after writing it is reliable enough for byte-exact verification.
	SupportsReadback() bool
}

// New returns the disk operations for the running OS, or ErrUnsupportedOS.
func New() (DiskOps, error) {
	return newPlatformOps()
}
