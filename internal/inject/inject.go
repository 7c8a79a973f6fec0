// Package inject prepares a flashable image: it copies a base disk image,
// attaches the copy as a block device, mounts its first partition and drops
// a config package into the filesystem root.
package inject

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ufgtools/fwcard/internal/platform"
	"github.com/ufgtools/fwcard/internal/scratch"
)

// fatTypes are the filesystem type strings accepted for the boot partition.
// Anything else only produces a warning: the operator's choice of base
// image is trusted over the type probe.
var fatTypes = map[string]bool{
	"msdos": true,
	"vfat":  true,
	"fat":   true,
	"fat32": true,
}

// RetryPolicy bounds the wait for partition device nodes, which can appear
// asynchronously after attach on Linux. Sleep is injectable for tests.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(time.Duration)
}

// DefaultRetry waits up to 5 seconds for the partition node.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: time.Second, Sleep: time.Sleep}
}

// Pipeline runs injection operations against a set of disk operations.
type Pipeline struct {
	Ops   platform.DiskOps
	Retry RetryPolicy
	Log   *logrus.Logger
}

// New returns a pipeline with the default retry policy and logger.
func New(ops platform.DiskOps) *Pipeline {
	return &Pipeline{Ops: ops, Retry: DefaultRetry(), Log: logrus.StandardLogger()}
}

// Run produces a new image file that is a copy of baseImage with the config
// package added to the root of its first partition, and returns its path.
// The original base image is never touched. On every exit path the run
// leaves no mounted filesystem and no attached device behind; only a
// successful run leaves the workspace (holding the result) on disk.
func (p *Pipeline) Run(ctx context.Context, baseImage, packagePath string) (resultPath string, err error) {
	id, err := PackageID(packagePath)
	if err != nil {
		return "", err
	}

	ws, err := scratch.New("fwcard-inject")
	if err != nil {
		return "", err
	}
	defer ws.Cleanup(ctx, p.Ops)

	// The id prefix keeps provenance visible and avoids collisions between
	// concurrent runs preparing different hosts.
	imageCopy := filepath.Join(ws.Root, id+"-"+filepath.Base(baseImage))
	p.Log.Infof("copying base image %s -> %s", baseImage, imageCopy)
	if err := copyFile(imageCopy, baseImage); err != nil {
		return "", fmt.Errorf("failed to copy base image: %w", err)
	}

	attachOut, err := p.Ops.AttachImage(ctx, imageCopy)
	if err != nil {
		return "", fmt.Errorf("failed to attach image: %w (output: %s)", err, attachOut)
	}

	disk := p.Ops.ParseAttachedDisk(attachOut)
	if disk == "" {
		return "", fmt.Errorf("%w; attach output:\n%s", platform.ErrNoAttachedDisk, attachOut)
	}
	ws.SetAttached(disk)
	p.Log.Infof("attached %s as %s", imageCopy, disk)

	partition, err := p.waitForPartition(disk)
	if err != nil {
		return "", fmt.Errorf("%w; attach output:\n%s", err, attachOut)
	}

	fsType, err := p.Ops.FilesystemType(ctx, partition)
	switch {
	case err != nil:
		p.Log.Warnf("could not probe filesystem type of %s: %v", partition, err)
	case fsType == "":
		p.Log.Warnf("no filesystem type reported for %s, continuing anyway", partition)
	case !fatTypes[fsType]:
		p.Log.Warnf("partition %s has filesystem type %q, expected a FAT variant", partition, fsType)
	}

	if err := p.Ops.MountPartition(ctx, partition, ws.MountDir); err != nil {
		return "", err
	}
	ws.SetMounted(true)

	dest := filepath.Join(ws.MountDir, filepath.Base(packagePath))
	p.Log.Infof("copying config package into image: %s", filepath.Base(packagePath))
	if err := copyFile(dest, packagePath); err != nil {
		return "", fmt.Errorf("failed to copy config package into image: %w", err)
	}

	p.Ops.Sync()

	// The workspace now holds the only reference to the prepared image;
	// hand it off to the caller instead of deleting it.
	ws.Retain()
	return imageCopy, nil
}

// waitForPartition resolves the first partition of the attached disk,
// retrying because the partition device node can lag behind attach.
func (p *Pipeline) waitForPartition(disk string) (string, error) {
	retry := p.Retry
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	if retry.Sleep == nil {
		retry.Sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < retry.Attempts; attempt++ {
		if attempt > 0 {
			retry.Sleep(retry.Delay)
		}
		partition, err := p.Ops.FirstPartition(disk)
		if err != nil {
			lastErr = err
			continue
		}
		if p.Ops.PartitionExists(partition) {
			return partition, nil
		}
		lastErr = fmt.Errorf("%w: %s", platform.ErrPartitionNotFound, partition)
	}
	return "", lastErr
}

// copyFile copies src to dst and flushes the result to disk.
func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
