package platform

import (
	"context"
	"strings"
)

// FakeOps is an in-memory DiskOps for tests and dry runs. It records every
// call in order and returns canned results, so pipeline behavior (including
// cleanup ordering) can be asserted without touching real block devices.
type FakeOps struct {
	// Canned results.
	AttachOutput    string
	AttachErr       error
	Disk            string // returned by ParseAttachedDisk when non-empty
	Partition       string
	PartitionOK     bool
	FSType          string
	FSTypeErr       error
	MountErr        error
	UnmountDirErr   error
	DetachErr       error
	UnmountDevErr   error
	Readback        bool
	PartitionProbe  func(partition string) bool // overrides PartitionOK when set

	// Calls is the ordered list of operations performed, e.g.
	// "mount /dev/loop0p1 /tmp/ws/mnt".
	Calls []string
}

func (f *FakeOps) record(parts ...string) {
	f.Calls = append(f.Calls, strings.Join(parts, " "))
}

func (f *FakeOps) AttachImage(_ context.Context, imagePath string) (string, error) {
	f.record("attach", imagePath)
	return f.AttachOutput, f.AttachErr
}

func (f *FakeOps) ParseAttachedDisk(attachOutput string) string {
	if f.Disk != "" {
		return f.Disk
	}
	return ParseLoopDisk(attachOutput)
}

func (f *FakeOps) FirstPartition(disk string) (string, error) {
	if f.Partition == "" {
		return "", ErrPartitionNotFound
	}
	return f.Partition, nil
}

func (f *FakeOps) PartitionExists(partition string) bool {
	if f.PartitionProbe != nil {
		return f.PartitionProbe(partition)
	}
	return f.PartitionOK
}

func (f *FakeOps) FilesystemType(_ context.Context, partition string) (string, error) {
	return f.FSType, f.FSTypeErr
}

func (f *FakeOps) MountPartition(_ context.Context, partition, mountDir string) error {
	f.record("mount", partition, mountDir)
	return f.MountErr
}

func (f *FakeOps) UnmountDir(_ context.Context, mountDir string) error {
	f.record("unmount", mountDir)
	return f.UnmountDirErr
}

func (f *FakeOps) DetachDisk(_ context.Context, disk string) error {
	f.record("detach", disk)
	return f.DetachErr
}

func (f *FakeOps) UnmountDevice(_ context.Context, device string) error {
	f.record("unmount-device", device)
	return f.UnmountDevErr
}

func (f *FakeOps) Sync() {
	f.record("sync")
}

func (f *FakeOps) SupportsReadback() bool {
	return f.Readback
}
