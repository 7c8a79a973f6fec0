// Package devices lists candidate removable block devices for flashing.
package devices

import (
	"fmt"
	"regexp"
	"strings"
)

// Device describes one removable device the operator can flash.
type Device struct {
	Path         string // e.g. /dev/sdb or /dev/disk4
	Size         string // human-readable, e.g. "15.5 GB"
	Manufacturer string
}

// Row renders the device as one tab-separated inventory line
// (path, size, manufacturer), the format downstream tooling parses.
func (d Device) Row() string {
	return strings.Join([]string{d.Path, d.Size, d.Manufacturer}, "\t")
}

// FormatSize renders a byte count the way the inventory reports sizes.
func FormatSize(bytes int64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	}
	return fmt.Sprintf("%.0f MB", float64(bytes)/mb)
}

var lsblkPairPattern = regexp.MustCompile(`([A-Z]+)="([^"]*)"`)

// parseLsblkPairs parses one line of `lsblk -P` KEY="value" output.
func parseLsblkPairs(line string) map[string]string {
	pairs := make(map[string]string)
	for _, m := range lsblkPairPattern.FindAllStringSubmatch(line, -1) {
		pairs[m[1]] = m[2]
	}
	return pairs
}

var diskutilDiskPattern = regexp.MustCompile(`^(/dev/disk\d+)\s`)

// parseDiskutilList extracts whole-disk device paths from
// `diskutil list external physical` output.
func parseDiskutilList(output string) []string {
	var disks []string
	for _, line := range strings.Split(output, "\n") {
		if m := diskutilDiskPattern.FindStringSubmatch(line); m != nil {
			disks = append(disks, m[1])
		}
	}
	return disks
}
