//go:build darwin

package platform

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// darwinOps implements DiskOps with macOS virtual-disk-image semantics:
// hdiutil to attach/detach, diskutil for mounting and probing.
type darwinOps struct{}

func (darwinOps) AttachImage(ctx context.Context, imagePath string) (string, error) {
	out, err := exec.CommandContext(ctx, "hdiutil", "attach", "-nomount", imagePath).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("hdiutil attach %s: %w", imagePath, err)
	}
	return string(out), nil
}

func (darwinOps) ParseAttachedDisk(attachOutput string) string {
	return ParseHdiutilDisk(attachOutput)
}

// FirstPartition needs no probing on macOS: partition slices always use the
// fixed "s" suffix (/dev/disk4 -> /dev/disk4s1).
func (darwinOps) FirstPartition(disk string) (string, error) {
	return disk + "s1", nil
}

func (darwinOps) PartitionExists(partition string) bool {
	stat, err := os.Stat(partition)
	if err != nil {
		return false
	}
	return stat.Mode().Type()&fs.ModeDevice != 0
}

func (darwinOps) FilesystemType(ctx context.Context, partition string) (string, error) {
	out, err := exec.CommandContext(ctx, "diskutil", "info", partition).Output()
	if err != nil {
		return "", fmt.Errorf("diskutil info %s: %w", partition, err)
	}
	return strings.ToLower(ParseDiskutilValue(string(out), "Type (Bundle)")), nil
}

func (darwinOps) MountPartition(ctx context.Context, partition, mountDir string) error {
	if out, err := exec.CommandContext(ctx, "diskutil", "mount", "-mountPoint", mountDir, partition).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to mount %s at %s: %w (output: %s)", partition, mountDir, err, out)
	}
	return nil
}

func (darwinOps) UnmountDir(ctx context.Context, mountDir string) error {
	if out, err := exec.CommandContext(ctx, "diskutil", "unmount", mountDir).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to unmount %s: %w (output: %s)", mountDir, err, out)
	}
	return nil
}

func (darwinOps) DetachDisk(ctx context.Context, disk string) error {
	if err := exec.CommandContext(ctx, "hdiutil", "detach", disk).Run(); err == nil {
		return nil
	}
	// A lingering Spotlight or fseventsd handle can hold the disk open
	// briefly; force-detach as a second attempt.
	if out, err := exec.CommandContext(ctx, "hdiutil", "detach", disk, "-force").CombinedOutput(); err != nil {
		return fmt.Errorf("failed to detach %s: %w (output: %s)", disk, err, out)
	}
	return nil
}

func (darwinOps) UnmountDevice(ctx context.Context, device string) error {
	// diskutil handles the partition ordering itself when unmounting a
	// whole disk.
	if out, err := exec.CommandContext(ctx, "diskutil", "unmountDisk", "force", device).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to unmount disk %s: %w (output: %s)", device, err, out)
	}
	return nil
}

func (darwinOps) Sync() {
	unix.Sync()
}

// SupportsReadback: raw-device reads right after a large write go through
// caches that make post-write verification unreliable on macOS, so byte
// comparison is skipped there. A flushed copy is accepted as successful.
func (darwinOps) SupportsReadback() bool {
	return false
}
