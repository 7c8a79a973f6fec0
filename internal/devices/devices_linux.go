//go:build linux

package devices

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// List returns removable whole disks as reported by lsblk.
func List(ctx context.Context) ([]Device, error) {
	out, err := exec.CommandContext(ctx, "lsblk", "-d", "-p", "-b", "-P",
		"-o", "NAME,SIZE,RM,TYPE,VENDOR,MODEL").Output()
	if err != nil {
		return nil, fmt.Errorf("lsblk: %w", err)
	}

	var found []Device
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pairs := parseLsblkPairs(line)
		if pairs["TYPE"] != "disk" || pairs["RM"] != "1" {
			continue
		}

		size := ""
		if bytes, err := strconv.ParseInt(pairs["SIZE"], 10, 64); err == nil && bytes > 0 {
			size = FormatSize(bytes)
		}
		label := strings.TrimSpace(strings.TrimSpace(pairs["VENDOR"]) + " " + strings.TrimSpace(pairs["MODEL"]))

		found = append(found, Device{
			Path:         pairs["NAME"],
			Size:         size,
			Manufacturer: label,
		})
	}
	return found, nil
}
