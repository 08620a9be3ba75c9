package notarize

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects one of the pipelines.
type Mode string

const (
	ModeCredentials Mode = "credentials"
	ModeApp         Mode = "app"
	ModeInstaller   Mode = "installer"
)

var ErrUnknownMode = errors.New("unknown type")

// Modes lists the accepted modes in usage order.
var Modes = []Mode{ModeApp, ModeInstaller, ModeCredentials}

// ParseMode validates the --type argument.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q (choose from %s)", s, strings.Join(names, ", "))
}
