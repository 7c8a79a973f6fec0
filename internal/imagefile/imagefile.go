// Package imagefile creates and inspects base disk images without needing
// root or any OS disk tooling.
package imagefile

import (
	"fmt"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

const sectorSize = 512

// partitionStart leaves the conventional 1 MiB gap before the first
// partition.
const partitionStart = 2048

// CreateBaseImage writes a blank base image at path: an MBR partition
// table with a single FAT32 partition spanning the rest of the disk.
func CreateBaseImage(path string, sizeMB int64, label string) error {
	size := sizeMB * 1024 * 1024
	d, err := diskfs.Create(path, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("failed to create disk image: %w", err)
	}

	table := &mbr.Table{
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
		Partitions: []*mbr.Partition{
			{
				Bootable: false,
				Type:     mbr.Fat32LBA,
				Start:    partitionStart,
				Size:     uint32(size/sectorSize - partitionStart),
			},
		},
	}
	if err := d.Partition(table); err != nil {
		return fmt.Errorf("failed to write partition table: %w", err)
	}

	if _, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	}); err != nil {
		return fmt.Errorf("failed to create filesystem: %w", err)
	}
	return nil
}

// ListRoot returns the file names in the root directory of the image's
// first partition, read directly from the image file.
func ListRoot(path string) ([]string, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open disk image: %w", err)
	}

	fs, err := d.GetFilesystem(1)
	if err != nil {
		// Unpartitioned images keep the filesystem at partition 0.
		fs, err = d.GetFilesystem(0)
		if err != nil {
			return nil, fmt.Errorf("failed to read filesystem: %w", err)
		}
	}

	entries, err := fs.ReadDir("/")
	if err != nil {
		return nil, fmt.Errorf("failed to read image root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
