package inject

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ufgtools/fwcard/internal/platform"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// writeTempFile creates a file with the given name and content under a
// fresh temp directory and returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(ops *platform.FakeOps) *Pipeline {
	p := New(ops)
	p.Log = quietLogger()
	p.Retry = RetryPolicy{Attempts: 5, Delay: time.Second, Sleep: func(time.Duration) {}}
	return p
}

func TestRunSuccess(t *testing.T) {
	base := writeTempFile(t, "disk.img", "base image bytes")
	pkg := writeTempFile(t, "ufg_config_package-n70201.tgz", "package bytes")

	ops := &platform.FakeOps{
		AttachOutput: "/dev/loop0\n",
		Partition:    "/dev/loop0p1",
		PartitionOK:  true,
		FSType:       "vfat",
	}
	p := newTestPipeline(ops)

	result, err := p.Run(context.Background(), base, pkg)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	root := filepath.Dir(result)
	defer os.RemoveAll(root)

	if filepath.Base(result) != "n70201-disk.img" {
		t.Errorf("result name = %q, want n70201-disk.img", filepath.Base(result))
	}
	got, err := os.ReadFile(result)
	if err != nil {
		t.Fatalf("result image missing: %v", err)
	}
	if string(got) != "base image bytes" {
		t.Errorf("result image content = %q", got)
	}

	// The config package landed in the mounted filesystem root.
	mnt := filepath.Join(root, "mnt")
	if _, err := os.Stat(filepath.Join(mnt, "ufg_config_package-n70201.tgz")); err != nil {
		t.Errorf("config package not in image: %v", err)
	}

	want := []string{
		"attach " + result,
		"mount /dev/loop0p1 " + mnt,
		"sync",
		"unmount " + mnt,
		"detach /dev/loop0",
	}
	if !reflect.DeepEqual(ops.Calls, want) {
		t.Errorf("operations = %v, want %v", ops.Calls, want)
	}
}

func TestRunNonFATOnlyWarns(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	ops := &platform.FakeOps{
		AttachOutput: "/dev/loop0\n",
		Partition:    "/dev/loop0p1",
		PartitionOK:  true,
		FSType:       "ext4",
	}
	if _, err := newTestPipeline(ops).Run(context.Background(), base, pkg); err != nil {
		t.Fatalf("Run() with non-FAT partition failed: %v", err)
	}
}

func TestRunNoPackageID(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "bundle.zip", "y")

	ops := &platform.FakeOps{}
	_, err := newTestPipeline(ops).Run(context.Background(), base, pkg)
	if !errors.Is(err, ErrNoPackageID) {
		t.Fatalf("Run() = %v, want ErrNoPackageID", err)
	}
	if len(ops.Calls) != 0 {
		t.Errorf("disk operations before id validation: %v", ops.Calls)
	}
}

func TestRunAttachFailure(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	ops := &platform.FakeOps{
		AttachOutput: "losetup: cannot find an unused loop device",
		AttachErr:    errors.New("exit status 1"),
	}
	_, err := newTestPipeline(ops).Run(context.Background(), base, pkg)
	if err == nil {
		t.Fatal("Run() succeeded despite attach failure")
	}
	if !strings.Contains(err.Error(), "cannot find an unused loop device") {
		t.Errorf("error does not carry the attach output: %v", err)
	}
}

func TestRunUnparseableAttachOutput(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	ops := &platform.FakeOps{AttachOutput: "something unexpected entirely"}
	_, err := newTestPipeline(ops).Run(context.Background(), base, pkg)
	if !errors.Is(err, platform.ErrNoAttachedDisk) {
		t.Fatalf("Run() = %v, want ErrNoAttachedDisk", err)
	}
	if !strings.Contains(err.Error(), "something unexpected entirely") {
		t.Errorf("error does not carry the attach output: %v", err)
	}
	// Nothing was attached, so nothing gets detached.
	for _, call := range ops.Calls {
		if strings.HasPrefix(call, "detach") {
			t.Errorf("unexpected detach: %v", ops.Calls)
		}
	}
}

func TestRunPartitionRetryExhausted(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	sleeps := 0
	ops := &platform.FakeOps{
		AttachOutput: "/dev/loop0\n",
		Partition:    "/dev/loop0p1",
		PartitionOK:  false,
	}
	p := New(ops)
	p.Log = quietLogger()
	p.Retry = RetryPolicy{Attempts: 5, Delay: time.Second, Sleep: func(time.Duration) { sleeps++ }}

	_, err := p.Run(context.Background(), base, pkg)
	if !errors.Is(err, platform.ErrPartitionNotFound) {
		t.Fatalf("Run() = %v, want ErrPartitionNotFound", err)
	}
	// Five attempts sleep four times between them.
	if sleeps != 4 {
		t.Errorf("sleeps = %d, want 4", sleeps)
	}
	// The attached device is still released.
	want := []string{"attach", "detach /dev/loop0"}
	if len(ops.Calls) != 2 || !strings.HasPrefix(ops.Calls[0], want[0]) || ops.Calls[1] != want[1] {
		t.Errorf("operations = %v, want attach then detach", ops.Calls)
	}
}

func TestRunPartitionAppearsLate(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	probes := 0
	ops := &platform.FakeOps{
		AttachOutput: "/dev/loop0\n",
		Partition:    "/dev/loop0p1",
		FSType:       "vfat",
		PartitionProbe: func(string) bool {
			probes++
			return probes >= 3
		},
	}
	result, err := newTestPipeline(ops).Run(context.Background(), base, pkg)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer os.RemoveAll(filepath.Dir(result))
	if probes != 3 {
		t.Errorf("probes = %d, want 3", probes)
	}
}

func TestRunMountFailureCleansUp(t *testing.T) {
	base := writeTempFile(t, "disk.img", "x")
	pkg := writeTempFile(t, "pkg-n1.tgz", "y")

	ops := &platform.FakeOps{
		AttachOutput: "/dev/loop0\n",
		Partition:    "/dev/loop0p1",
		PartitionOK:  true,
		FSType:       "vfat",
		MountErr:     errors.New("mount: wrong fs type"),
	}
	_, err := newTestPipeline(ops).Run(context.Background(), base, pkg)
	if err == nil {
		t.Fatal("Run() succeeded despite mount failure")
	}
	// The mount never took effect, so cleanup detaches without unmounting.
	last := ops.Calls[len(ops.Calls)-1]
	if last != "detach /dev/loop0" {
		t.Errorf("last operation = %q, want detach /dev/loop0", last)
	}
	for _, call := range ops.Calls {
		if strings.HasPrefix(call, "unmount ") {
			t.Errorf("unexpected unmount after failed mount: %v", ops.Calls)
		}
	}
}
