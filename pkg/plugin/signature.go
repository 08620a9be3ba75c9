package plugin

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/blacktop/go-macho"
	"github.com/pkg/errors"
	"go.mozilla.org/pkcs7"

	"github.com/aluedeke/go-notarize/pkg/identity"
)

const (
	magicFat               = 0xcafebabe
	magicEmbeddedSignature = 0xfade0cc0
	magicCodeDirectory     = 0xfade0c02
	magicBlobWrapper       = 0xfade0b01

	slotCodeDirectory            = 0
	slotAlternateCodeDirectories = 0x1000
	slotCMSSignature             = 0x10000

	flagAdhoc = 0x2
)

var ErrUnsigned = errors.New("no code signature found")

// Signature describes the code signature of every slice of a binary.
type Signature struct {
	Path   string
	Slices []Slice
}

// Slice is the signature of one architecture.
type Slice struct {
	Arch   string
	Signed bool
	CodeSignature
}

// CodeSignature holds the fields of an embedded signature that matter for
// Developer ID distribution.
type CodeSignature struct {
	Identifier   string
	TeamID       string
	Flags        uint32
	SignerCN     string
	SignerTeamID string
	SignerSHA1   string
}

// Adhoc reports whether the signature carries no certificate.
func (c CodeSignature) Adhoc() bool {
	return c.Flags&flagAdhoc != 0 || c.SignerCN == ""
}

// ReadSignature parses the Mach-O (thin or universal) binary at path.
func ReadSignature(path string) (*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read binary")
	}

	sig := &Signature{Path: path}

	if len(data) >= 4 && binary.BigEndian.Uint32(data) == magicFat {
		fat, err := macho.NewFatFile(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse universal binary")
		}
		defer fat.Close()

		for i, arch := range fat.Arches {
			end := uint64(arch.Offset) + uint64(arch.Size)
			if end > uint64(len(data)) {
				return nil, errors.Errorf("arch %d extends beyond file", i)
			}
			s, err := readSlice(data[arch.Offset:end])
			if err != nil {
				return nil, errors.Wrapf(err, "arch %d", i)
			}
			s.Arch = arch.CPU.String()
			sig.Slices = append(sig.Slices, *s)
		}
		return sig, nil
	}

	s, err := readSlice(data)
	if err != nil {
		return nil, err
	}
	sig.Slices = append(sig.Slices, *s)
	return sig, nil
}

func readSlice(data []byte) (*Slice, error) {
	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Mach-O")
	}
	defer m.Close()

	s := &Slice{Arch: m.CPU.String()}
	for _, load := range m.Loads {
		cs, ok := load.(*macho.CodeSignature)
		if !ok {
			continue
		}
		end := uint64(cs.Offset) + uint64(cs.Size)
		if end > uint64(len(data)) {
			return nil, errors.New("code signature extends beyond file")
		}
		parsed, err := parseSuperBlob(data[cs.Offset:end])
		if err != nil {
			return nil, err
		}
		s.Signed = true
		s.CodeSignature = *parsed
		break
	}
	return s, nil
}

// parseSuperBlob extracts the identifier, team and signer from an embedded
// signature SuperBlob. All integers are big-endian.
func parseSuperBlob(blob []byte) (*CodeSignature, error) {
	if len(blob) < 12 {
		return nil, errors.New("signature data too short")
	}
	if magic := binary.BigEndian.Uint32(blob); magic != magicEmbeddedSignature {
		return nil, errors.Errorf("invalid SuperBlob magic: 0x%x", magic)
	}

	count := binary.BigEndian.Uint32(blob[8:])
	if uint64(len(blob)) < 12+uint64(count)*8 {
		return nil, errors.New("signature data too short for blob index")
	}

	cs := &CodeSignature{}
	for i := uint32(0); i < count; i++ {
		entry := 12 + i*8
		slot := binary.BigEndian.Uint32(blob[entry:])
		offset := binary.BigEndian.Uint32(blob[entry+4:])
		if uint64(offset)+8 > uint64(len(blob)) {
			continue
		}
		length := binary.BigEndian.Uint32(blob[offset+4:])
		if length < 8 || uint64(offset)+uint64(length) > uint64(len(blob)) {
			continue
		}
		data := blob[offset : offset+length]

		switch {
		case slot == slotCodeDirectory || (slot >= slotAlternateCodeDirectories && slot < slotAlternateCodeDirectories+5):
			// the primary CodeDirectory wins; alternates only fill gaps
			if cs.Identifier == "" {
				parseCodeDirectory(data, cs)
			}
		case slot == slotCMSSignature:
			parseCMS(data, cs)
		}
	}
	return cs, nil
}

func parseCodeDirectory(data []byte, cs *CodeSignature) {
	if len(data) < 44 || binary.BigEndian.Uint32(data) != magicCodeDirectory {
		return
	}

	version := binary.BigEndian.Uint32(data[8:])
	cs.Flags = binary.BigEndian.Uint32(data[12:])
	cs.Identifier = cString(data, binary.BigEndian.Uint32(data[20:]))

	if version >= 0x20200 && len(data) >= 52 {
		if off := binary.BigEndian.Uint32(data[48:]); off > 0 {
			cs.TeamID = cString(data, off)
		}
	}
}

func parseCMS(data []byte, cs *CodeSignature) {
	if len(data) <= 8 || binary.BigEndian.Uint32(data) != magicBlobWrapper {
		return
	}

	p7, err := pkcs7.Parse(data[8:])
	if err != nil || len(p7.Signers) == 0 {
		return
	}

	serial := p7.Signers[0].IssuerAndSerialNumber.SerialNumber
	for _, cert := range p7.Certificates {
		if cert.SerialNumber.Cmp(serial) == 0 {
			cs.SignerCN = cert.Subject.CommonName
			cs.SignerTeamID = identity.TeamID(cert)
			cs.SignerSHA1 = identity.Fingerprint(cert)
			return
		}
	}
}

func cString(data []byte, off uint32) string {
	if uint64(off) >= uint64(len(data)) {
		return ""
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return string(data[off:])
	}
	return string(data[off : off+uint32(end)])
}
