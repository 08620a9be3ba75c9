package plugin

import (
	"archive/zip"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// CheckArchive makes sure every bundle in bundles was stored in the zip
// archive with its Info.plist, at the path it will be extracted to.
func CheckArchive(archivePath string, bundles ...string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "failed to open archive")
	}
	defer r.Close()

	entries := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		entries[strings.TrimSuffix(f.Name, "/")] = true
	}

	var missing []string
	for _, b := range bundles {
		plist := path.Join(archiveName(b), "Contents", "Info.plist")
		if !entries[plist] {
			missing = append(missing, plist)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("%s is missing %s", archivePath, strings.Join(missing, ", "))
	}
	return nil
}

// archiveName mirrors how zip stores a path given on its command line:
// leading "/" and "./" are dropped.
func archiveName(p string) string {
	p = strings.TrimRight(p, "/")
	for {
		switch {
		case strings.HasPrefix(p, "/"):
			p = strings.TrimPrefix(p, "/")
		case strings.HasPrefix(p, "./"):
			p = strings.TrimPrefix(p, "./")
		default:
			return path.Clean(p)
		}
	}
}
