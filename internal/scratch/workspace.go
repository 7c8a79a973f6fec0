// Package scratch manages the ephemeral working directory an injection run
// owns: a unique temp directory with a mount-point subdirectory, plus the
// mounted/attached state that cleanup has to unwind.
package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ufgtools/fwcard/internal/platform"
)

// Workspace is exclusively owned by one pipeline invocation. Cleanup runs
// on every exit path and releases everything in a fixed order: unmount,
// then detach, then remove the directory tree (unless retained).
type Workspace struct {
	// Root is the workspace directory; the working image copy lives here.
	Root string

	// MountDir is the mount-point subdirectory inside Root.
	MountDir string

	mounted      bool
	attachedDisk string
	retain       bool
}

// New creates a uniquely-named workspace directory with an empty
// mount-point subdirectory inside it.
func New(prefix string) (*Workspace, error) {
	root, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	mountDir := filepath.Join(root, "mnt")
	if err := os.Mkdir(mountDir, 0755); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("failed to create mount point: %w", err)
	}

	return &Workspace{Root: root, MountDir: mountDir}, nil
}

// SetMounted records whether a filesystem is currently mounted at MountDir.
func (w *Workspace) SetMounted(mounted bool) {
	w.mounted = mounted
}

// SetAttached records the block device currently attached for this run.
// An empty disk means nothing is attached.
func (w *Workspace) SetAttached(disk string) {
	w.attachedDisk = disk
}

// Retain marks the workspace as holding a result the caller takes over;
// Cleanup will still unmount and detach but leave the directory in place.
func (w *Workspace) Retain() {
	w.retain = true
}

// Retained reports whether the workspace survives Cleanup.
func (w *Workspace) Retained() bool {
	return w.retain
}

// Cleanup releases everything the workspace acquired. Every step is
// best-effort: a failure is logged and the remaining steps still run, so a
// cleanup error can never mask the error that triggered the unwind. The
// unmount-before-detach order is mandatory; detaching a still-mounted
// device risks data loss.
func (w *Workspace) Cleanup(ctx context.Context, ops platform.DiskOps) {
	// Cleanup must still run when the invocation was cancelled by a signal,
	// so the teardown commands get a context that cannot be cancelled.
	ctx = context.WithoutCancel(ctx)

	if w.mounted {
		if err := ops.UnmountDir(ctx, w.MountDir); err != nil {
			logrus.Warnf("cleanup: %v", err)
		}
		w.mounted = false
	}

	if w.attachedDisk != "" {
		if err := ops.DetachDisk(ctx, w.attachedDisk); err != nil {
			logrus.Warnf("cleanup: %v", err)
		}
		w.attachedDisk = ""
	}

	if w.retain {
		return
	}
	if err := os.RemoveAll(w.Root); err != nil {
		logrus.Warnf("cleanup: failed to remove %s: %v", w.Root, err)
	}
}
