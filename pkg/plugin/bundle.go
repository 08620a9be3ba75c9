package plugin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"howett.net/plist"
)

// Format is the plug-in flavour, derived from the bundle extension.
type Format string

const (
	FormatVST3    Format = "VST3"
	FormatVST     Format = "VST"
	FormatAU      Format = "AU"
	FormatAAX     Format = "AAX"
	FormatUnknown Format = "unknown"
)

var ErrNotBundle = errors.New("not a bundle directory")

// Bundle is a plug-in bundle and the fields read from its Info.plist.
type Bundle struct {
	Path         string
	Format       Format
	Identifier   string
	Executable   string
	Version      string
	ShortVersion string
	Info         map[string]interface{}
}

// FormatOf guesses the plug-in format from the bundle extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(strings.TrimRight(path, "/"))) {
	case ".vst3":
		return FormatVST3
	case ".vst":
		return FormatVST
	case ".component":
		return FormatAU
	case ".aaxplugin":
		return FormatAAX
	}
	return FormatUnknown
}

// OpenBundle reads Contents/Info.plist of the bundle at path.
func OpenBundle(path string) (*Bundle, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat bundle")
	}
	if !st.IsDir() {
		return nil, errors.Wrap(ErrNotBundle, path)
	}

	data, err := os.ReadFile(filepath.Join(path, "Contents", "Info.plist"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Info.plist")
	}

	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "failed to parse Info.plist")
	}

	b := &Bundle{
		Path:   path,
		Format: FormatOf(path),
		Info:   info,
	}
	b.Identifier, _ = info["CFBundleIdentifier"].(string)
	b.Executable, _ = info["CFBundleExecutable"].(string)
	b.Version, _ = info["CFBundleVersion"].(string)
	b.ShortVersion, _ = info["CFBundleShortVersionString"].(string)

	if b.Executable == "" {
		return nil, errors.Errorf("CFBundleExecutable not found in %s", path)
	}
	return b, nil
}

// ExecutablePath is the main binary inside the bundle.
func (b *Bundle) ExecutablePath() string {
	return filepath.Join(b.Path, "Contents", "MacOS", b.Executable)
}
