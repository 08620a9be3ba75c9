// Package identity inspects Developer ID signing identities exported as
// PKCS#12 (.p12) files before they are imported into the keychain.
package identity

import (
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	gop12 "software.sslmate.com/src/go-pkcs12"
)

var (
	ErrMismatch = errors.New("certificate does not match the configured identity")
	ErrExpired  = errors.New("certificate has expired")
)

var (
	teamIDPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	sha1Pattern   = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)
)

// Identity is a decoded signing certificate and its key.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
	CertChain   []*x509.Certificate
	CommonName  string
	TeamID      string
	Fingerprint string
}

// Load decodes the PKCS#12 file at path.
func Load(path, password string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read P12 file")
	}
	return Decode(data, password)
}

// Decode decodes PKCS#12 data.
func Decode(p12Data []byte, password string) (*Identity, error) {
	privateKey, cert, caCerts, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode P12")
	}

	chain := []*x509.Certificate{cert}
	chain = append(chain, caCerts...)

	return &Identity{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertChain:   chain,
		CommonName:  cert.Subject.CommonName,
		TeamID:      TeamID(cert),
		Fingerprint: Fingerprint(cert),
	}, nil
}

// TeamID returns the Apple team identifier carried in the certificate's
// organizational unit, or "" if there is none.
func TeamID(cert *x509.Certificate) string {
	for _, ou := range cert.Subject.OrganizationalUnit {
		if teamIDPattern.MatchString(ou) {
			return ou
		}
	}
	return ""
}

// Fingerprint returns the upper-case hex SHA-1 of the certificate, as
// printed by `security find-identity`.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Selects reports whether name picks the certificate the way codesign and
// productsign resolve --sign: forty hex digits are the certificate's SHA-1,
// anything else must be a substring of its common name.
func Selects(name, commonName, fingerprint string) bool {
	if name == "" {
		return false
	}
	if sha1Pattern.MatchString(name) {
		return strings.EqualFold(name, fingerprint)
	}
	return strings.Contains(commonName, name)
}

// Check verifies that the certificate is the one named in the configuration
// and that it is valid at now.
func (i *Identity) Check(name string, now time.Time) error {
	if !Selects(name, i.CommonName, i.Fingerprint) {
		return errors.Wrapf(ErrMismatch, "%q does not select %q", name, i.CommonName)
	}
	if now.After(i.Certificate.NotAfter) {
		return errors.Wrapf(ErrExpired, "%s expired on %s", i.CommonName, i.Certificate.NotAfter.Format("2006-01-02"))
	}
	return nil
}
