//go:build !linux && !darwin

package devices

import (
	"context"
	"errors"
)

// List is unavailable on platforms without a disk inventory backend.
func List(ctx context.Context) ([]Device, error) {
	return nil, errors.New("device inventory is not supported on this OS")
}
