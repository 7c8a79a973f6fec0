package platform

import (
	"regexp"
	"sort"
	"strings"
)

var (
	loopDiskPattern    = regexp.MustCompile(`/dev/loop\d+`)
	hdiutilDiskPattern = regexp.MustCompile(`/dev/disk\d+`)
)

// ParseLoopDisk extracts the first loop device path from losetup output.
func ParseLoopDisk(attachOutput string) string {
	return loopDiskPattern.FindString(attachOutput)
}

// ParseHdiutilDisk extracts the whole-disk device from hdiutil attach
// output. hdiutil lists the whole disk before its partitions, so the first
// match is the disk itself (/dev/disk4, not /dev/disk4s1).
func ParseHdiutilDisk(attachOutput string) string {
	return hdiutilDiskPattern.FindString(attachOutput)
}

// MountPointsFor scans the output of the mount(8) command for partitions of
// the given device and returns their mount points in reverse-alphabetical
// order, so a nested mount is always unmounted before its parent.
//
// Lines look like "/dev/sdb1 on /media/usb type vfat (rw,...)".
func MountPointsFor(mountOutput, device string) []string {
	var points []string
	for _, line := range strings.Split(mountOutput, "\n") {
		if !strings.HasPrefix(line, device) {
			continue
		}
		rest := line[len(device):]
		on := strings.Index(rest, " on ")
		if on < 0 {
			continue
		}
		// Skip e.g. /dev/sdb10 when asked about /dev/sdb1.
		if on > 0 && !isPartitionSuffix(device, rest[:on]) {
			continue
		}
		rest = rest[on+len(" on "):]
		// The mount point may contain spaces; cut at the trailing
		// " type <fs>" marker instead of the first space.
		if idx := strings.LastIndex(rest, " type "); idx >= 0 {
			rest = rest[:idx]
		} else if idx := strings.Index(rest, " ("); idx >= 0 {
			rest = rest[:idx]
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			points = append(points, rest)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(points)))
	return points
}

// isPartitionSuffix reports whether s turns device into one of its
// partition nodes. Devices whose names end in a digit (/dev/loop0) need a
// 'p' separator before the partition number; others take the number
// directly (/dev/sdb1) or after an 's' (/dev/disk4s1).
func isPartitionSuffix(device, s string) bool {
	if s == "" {
		return false
	}
	if s[0] == 'p' || s[0] == 's' {
		s = s[1:]
	} else if last := device[len(device)-1]; last >= '0' && last <= '9' {
		return false
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseDiskutilValue extracts a "Key: value" field from diskutil info
// output, e.g. "   Type (Bundle):             msdos".
func ParseDiskutilValue(infoOutput, key string) string {
	for _, line := range strings.Split(infoOutput, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, key+":"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
