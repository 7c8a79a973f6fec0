//go:build darwin

package devices

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ufgtools/fwcard/internal/platform"
)

// List returns external physical disks as reported by diskutil.
func List(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "diskutil", "list", "external", "physical").Output()
	if err != nil {
		return nil, fmt.Errorf("diskutil list: %w", err)
	}

	var found []Device
	for _, disk := range parseDiskutilList(string(out)) {
		info, err := exec.CommandContext(ctx, "diskutil", "info", disk).Output()
		if err != nil {
			// The disk may have been pulled between list and info.
			continue
		}
		found = append(found, Device{
			Path:         disk,
			Size:         diskutilSize(string(info)),
			Manufacturer: platform.ParseDiskutilValue(string(info), "Device / Media Name"),
		})
	}
	return found, nil
}

// diskutilSize turns "15.52 GB (15521316864 Bytes) (exactly ...)" into the
// inventory's size format, falling back to diskutil's own rendering.
func diskutilSize(info string) string {
	raw := platform.ParseDiskutilValue(info, "Disk Size")
	open := strings.Index(raw, "(")
	if open >= 0 {
		fields := strings.Fields(raw[open+1:])
		if len(fields) > 0 {
			if bytes, err := strconv.ParseInt(fields[0], 10, 64); err == nil && bytes > 0 {
				return FormatSize(bytes)
			}
		}
		raw = strings.TrimSpace(raw[:open])
	}
	return raw
}
