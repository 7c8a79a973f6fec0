package inject

import (
	"errors"
	"testing"
)

func TestPackageID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"ufg_config_package-n70201.tgz", "n70201"},
		{"/tmp/downloads/ufg_config_package-n70201.tar.gz", "n70201"},
		{"host42-n70201.tgz", "n70201"},
		{"bundle-a_B9.tar", "a_B9"},
	}
	for _, tt := range tests {
		got, err := PackageID(tt.path)
		if err != nil {
			t.Errorf("PackageID(%q) error: %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PackageID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPackageIDInvalid(t *testing.T) {
	for _, path := range []string{
		"bundle.zip",
		"no_dash.tgz",
		"trailing-.tgz",
		"ufg_config_package-n70201.img",
		"",
	} {
		if _, err := PackageID(path); !errors.Is(err, ErrNoPackageID) {
			t.Errorf("PackageID(%q) = %v, want ErrNoPackageID", path, err)
		}
	}
}
