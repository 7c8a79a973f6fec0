package inject

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

var ErrNoPackageID = errors.New("could not extract configuration id from package name")

// Config packages are named like "ufg_config_package-n70201.tgz": anything,
// a dash, the id (alphanumerics and underscore), and a tar-family suffix.
var packageIDPattern = regexp.MustCompile(`-([A-Za-z0-9_]+)\.(?:tar\.gz|tgz|tar)$`)

// PackageID extracts the configuration identifier from a config package
// file name or path.
func PackageID(packagePath string) (string, error) {
	name := filepath.Base(packagePath)
	m := packageIDPattern.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("%w: %q (expected something like ufg_config_package-n70201.tgz)", ErrNoPackageID, name)
	}
	return m[1], nil
}
