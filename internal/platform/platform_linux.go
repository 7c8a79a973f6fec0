//go:build linux

package platform

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// linuxOps implements DiskOps with loop-device semantics: losetup to attach,
// mount/umount for filesystems, blkid for type probing.
type linuxOps struct{}

func (linuxOps) AttachImage(ctx context.Context, imagePath string) (string, error) {
	out, err := exec.CommandContext(ctx, "losetup", "--show", "--find", "--partscan", imagePath).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("losetup %s: %w", imagePath, err)
	}
	return string(out), nil
}

func (linuxOps) ParseAttachedDisk(attachOutput string) string {
	return ParseLoopDisk(attachOutput)
}

// FirstPartition probes both partition naming conventions: loop devices get
// a "p1" suffix (/dev/loop0p1), sd-style devices a bare "1" (/dev/sdb1).
func (o linuxOps) FirstPartition(disk string) (string, error) {
	candidates := []string{disk + "p1", disk + "1"}
	for _, c := range candidates {
		if o.PartitionExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrPartitionNotFound, strings.Join(candidates, ", "))
}

func (linuxOps) PartitionExists(partition string) bool {
	stat, err := os.Stat(partition)
	if err != nil {
		return false
	}
	return stat.Mode().Type()&fs.ModeDevice != 0
}

func (linuxOps) FilesystemType(ctx context.Context, partition string) (string, error) {
	// blkid exits non-zero when it cannot identify the filesystem; the
	// caller treats an empty type as a warning, not a failure.
	out, err := exec.CommandContext(ctx, "blkid", "-o", "value", "-s", "TYPE", partition).Output()
	if err != nil {
		return "", fmt.Errorf("blkid %s: %w", partition, err)
	}
	return strings.ToLower(strings.TrimSpace(string(out))), nil
}

func (linuxOps) MountPartition(ctx context.Context, partition, mountDir string) error {
	if out, err := exec.CommandContext(ctx, "mount", partition, mountDir).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to mount %s at %s: %w (output: %s)", partition, mountDir, err, out)
	}
	return nil
}

func (linuxOps) UnmountDir(ctx context.Context, mountDir string) error {
	if out, err := exec.CommandContext(ctx, "umount", mountDir).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to unmount %s: %w (output: %s)", mountDir, err, out)
	}
	return nil
}

func (linuxOps) DetachDisk(ctx context.Context, disk string) error {
	if out, err := exec.CommandContext(ctx, "losetup", "-d", disk).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to detach %s: %w (output: %s)", disk, err, out)
	}
	return nil
}

func (linuxOps) UnmountDevice(ctx context.Context, device string) error {
	out, err := exec.CommandContext(ctx, "mount").Output()
	if err != nil {
		return fmt.Errorf("failed to read mount table: %w", err)
	}
	for _, point := range MountPointsFor(string(out), device) {
		if uout, uerr := exec.CommandContext(ctx, "umount", point).CombinedOutput(); uerr != nil {
			logrus.Warnf("unmount %s: %v (output: %s)", point, uerr, uout)
		}
	}
	return nil
}

func (linuxOps) Sync() {
	unix.Sync()
}

// SupportsReadback: reading back a raw block device after sync is reliable
// on Linux, so flashed devices are byte-verified.
func (linuxOps) SupportsReadback() bool {
	return true
}
