package plugin

import (
	"fmt"
	"strings"

	"github.com/aluedeke/go-notarize/pkg/identity"
)

// Expectation is what a plug-in signed for Developer ID distribution must
// carry.
type Expectation struct {
	// Identity is the value given to codesign --sign: the identity name,
	// a fragment of it, or the certificate's SHA-1.
	Identity string
	// TeamID is checked against the CodeDirectory and the signer
	// certificate when set.
	TeamID string
}

// VerifyError lists every problem found in one bundle.
type VerifyError struct {
	Path     string
	Problems []string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Verify checks the signature of the bundle's main executable.
func Verify(bundlePath string, expect Expectation) error {
	b, err := OpenBundle(bundlePath)
	if err != nil {
		return err
	}
	sig, err := ReadSignature(b.ExecutablePath())
	if err != nil {
		return err
	}
	return Check(b, sig, expect)
}

// Check compares an already parsed signature against the bundle and the
// expectation.
func Check(b *Bundle, sig *Signature, expect Expectation) error {
	verr := &VerifyError{Path: b.Path}
	fail := func(format string, args ...interface{}) {
		verr.Problems = append(verr.Problems, fmt.Sprintf(format, args...))
	}

	if len(sig.Slices) == 0 {
		fail("no architectures found")
	}

	for _, s := range sig.Slices {
		if !s.Signed {
			fail("%s: %s", s.Arch, ErrUnsigned)
			continue
		}
		if s.Adhoc() {
			fail("%s: ad-hoc signature", s.Arch)
			continue
		}
		if b.Identifier != "" && s.Identifier != b.Identifier {
			fail("%s: identifier %q does not match CFBundleIdentifier %q", s.Arch, s.Identifier, b.Identifier)
		}
		if expect.Identity != "" && !identity.Selects(expect.Identity, s.SignerCN, s.SignerSHA1) {
			fail("%s: signed by %q, want %q", s.Arch, s.SignerCN, expect.Identity)
		}
		if expect.TeamID != "" {
			if s.TeamID != expect.TeamID {
				fail("%s: team ID %q, want %q", s.Arch, s.TeamID, expect.TeamID)
			}
			if s.SignerTeamID != "" && s.SignerTeamID != expect.TeamID {
				fail("%s: certificate team ID %q, want %q", s.Arch, s.SignerTeamID, expect.TeamID)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

// Describe renders a short human readable summary of a signature.
func Describe(b *Bundle, sig *Signature) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s) %s %s\n", b.Path, b.Format, b.Identifier, b.ShortVersion)
	for _, s := range sig.Slices {
		if !s.Signed {
			fmt.Fprintf(&sb, "  %-8s unsigned\n", s.Arch)
			continue
		}
		signer := s.SignerCN
		if signer == "" {
			signer = "ad-hoc"
		}
		fmt.Fprintf(&sb, "  %-8s %s team=%s signer=%s\n", s.Arch, s.Identifier, s.TeamID, signer)
	}
	return sb.String()
}
