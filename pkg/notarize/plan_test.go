package notarize

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gop12 "software.sslmate.com/src/go-pkcs12"

	"github.com/aluedeke/go-notarize/pkg/config"
	"github.com/aluedeke/go-notarize/pkg/identity"
)

func fullConfig() map[string]string {
	return map[string]string{
		KeyAppleID:                "dev@example.com",
		KeyTeamID:                 "ABCDE12345",
		KeyAppSpecificPassword:    "abcd-efgh-ijkl-mnop",
		KeyDeveloperIDApplication: "Developer ID Application: Pixel Audio (ABCDE12345)",
		KeyDeveloperIDInstaller:   "Developer ID Installer: Pixel Audio (ABCDE12345)",
		KeyUnsignedVST:            "build/Pixel.vst3",
		KeyUnsignedAU:             "build/Pixel.component",
		KeyOutputZip:              "build/Pixel.zip",
		KeyInputPkg:               "dist/Pixel.pkg",
		KeyOutputSignedPkg:        "dist/Pixel-signed.pkg",
	}
}

func without(m map[string]string, key string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func TestPlanCredentials(t *testing.T) {
	plan, err := NewPlan(ModeCredentials, config.FromMap(fullConfig()), Options{})
	require.NoError(t, err)

	assert.Equal(t, ModeCredentials, plan.Mode)
	assert.Equal(t, []string{
		`xcrun notarytool store-credentials "PixelAppCredentials" --apple-id "dev@example.com" --team-id "ABCDE12345" --password "abcd-efgh-ijkl-mnop"`,
		`xcrun notarytool store-credentials "PixelInstallerCredentials" --apple-id "dev@example.com" --team-id "ABCDE12345" --password "abcd-efgh-ijkl-mnop"`,
	}, plan.Commands())
	assert.Equal(t, []string{"abcd-efgh-ijkl-mnop"}, plan.Secrets)
}

func TestPlanCredentialsDoesNotNeedIdentities(t *testing.T) {
	cfg := config.FromMap(map[string]string{
		KeyAppleID:             "dev@example.com",
		KeyTeamID:              "ABCDE12345",
		KeyAppSpecificPassword: "pw",
	})
	plan, err := NewPlan(ModeCredentials, cfg, Options{})
	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestPlanApp(t *testing.T) {
	plan, err := NewPlan(ModeApp, config.FromMap(fullConfig()), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`codesign --deep --force --verify --sign "Developer ID Application: Pixel Audio (ABCDE12345)" "build/Pixel.vst3"`,
		`codesign --deep --force --verify --sign "Developer ID Application: Pixel Audio (ABCDE12345)" "build/Pixel.component"`,
		`zip -r "build/Pixel.zip" "build/Pixel.vst3" "build/Pixel.component"`,
		`xcrun notarytool submit "build/Pixel.zip" --keychain-profile "PixelAppCredentials" --wait`,
		`unzip "build/Pixel.zip" -d "./signed/"`,
		`xcrun stapler staple "./signed/build/Pixel.vst3"`,
		`xcrun stapler staple "./signed/build/Pixel.component"`,
		`xcrun stapler validate "./signed/build/Pixel.vst3"`,
		`xcrun stapler validate "./signed/build/Pixel.component"`,
	}, plan.Commands())
	assert.Empty(t, plan.Secrets)
	for _, s := range plan.Steps {
		assert.Nil(t, s.Check, s.Name)
	}
}

func TestPlanAppOptionalKeys(t *testing.T) {
	values := fullConfig()
	values[KeyAppProfile] = "CIApp"
	values[KeySignedDir] = "out"
	plan, err := NewPlan(ModeApp, config.FromMap(values), Options{})
	require.NoError(t, err)

	cmds := plan.Commands()
	assert.Equal(t, `xcrun notarytool submit "build/Pixel.zip" --keychain-profile "CIApp" --wait`, cmds[3])
	assert.Equal(t, `unzip "build/Pixel.zip" -d "./out/"`, cmds[4])
	assert.Equal(t, `xcrun stapler staple "./out/build/Pixel.vst3"`, cmds[5])
}

func TestPlanAppSignedDirWithSpace(t *testing.T) {
	values := fullConfig()
	values[KeySignedDir] = "notarized build"
	plan, err := NewPlan(ModeApp, config.FromMap(values), Options{})
	require.NoError(t, err)

	cmds := plan.Commands()
	assert.Equal(t, `unzip "build/Pixel.zip" -d "./notarized build/"`, cmds[4])
	assert.Equal(t, `xcrun stapler staple "./notarized build/build/Pixel.vst3"`, cmds[5])
}

func TestPlanAppVerify(t *testing.T) {
	plan, err := NewPlan(ModeApp, config.FromMap(fullConfig()), Options{Verify: true})
	require.NoError(t, err)

	var names []string
	for _, s := range plan.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"sign VST", "sign AU",
		"verify VST signature", "verify AU signature",
		"zip plug-ins", "verify archive",
		"notarize plug-ins", "unzip plug-ins",
		"staple VST", "staple AU", "validate VST", "validate AU",
	}, names)
	require.NotNil(t, plan.Steps[2].Check)

	// the paths do not exist, so the check fails
	assert.Error(t, plan.Steps[2].Check(context.Background(), io.Discard))
	assert.Error(t, plan.Steps[5].Check(context.Background(), io.Discard))
	assert.Len(t, plan.Commands(), 9)
}

func TestPlanAppVerifyPrintsSignature(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("needs a signed Mach-O binary")
	}

	bundle := filepath.Join(t.TempDir(), "Pixel.vst3")
	macos := filepath.Join(bundle, "Contents", "MacOS")
	require.NoError(t, os.MkdirAll(macos, 0755))
	bin, err := os.ReadFile("/bin/ls")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(macos, "Pixel"), bin, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0"><dict>
<key>CFBundleIdentifier</key><string>com.pixelaudio.pixel.vst3</string>
<key>CFBundleExecutable</key><string>Pixel</string>
</dict></plist>`), 0644))

	values := fullConfig()
	values[KeyUnsignedVST] = bundle
	plan, err := NewPlan(ModeApp, config.FromMap(values), Options{Verify: true})
	require.NoError(t, err)

	// /bin/ls is signed by Apple, not by the configured Developer ID
	var out bytes.Buffer
	assert.Error(t, plan.Steps[2].Check(context.Background(), &out))
	assert.Contains(t, out.String(), bundle+" (VST3) com.pixelaudio.pixel.vst3")
	assert.Contains(t, out.String(), "signer=")
}

func TestPlanInstaller(t *testing.T) {
	plan, err := NewPlan(ModeInstaller, config.FromMap(fullConfig()), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`productsign --sign "Developer ID Installer: Pixel Audio (ABCDE12345)" "dist/Pixel.pkg" "dist/Pixel-signed.pkg"`,
		`xcrun notarytool submit "dist/Pixel-signed.pkg" --keychain-profile "PixelInstallerCredentials" --wait`,
		`xcrun stapler staple "dist/Pixel-signed.pkg"`,
		`xcrun stapler validate "dist/Pixel-signed.pkg"`,
	}, plan.Commands())
}

func TestPlanMissingKey(t *testing.T) {
	tests := []struct {
		mode Mode
		key  string
	}{
		{ModeCredentials, KeyAppleID},
		{ModeCredentials, KeyTeamID},
		{ModeCredentials, KeyAppSpecificPassword},
		{ModeApp, KeyDeveloperIDApplication},
		{ModeApp, KeyUnsignedVST},
		{ModeApp, KeyUnsignedAU},
		{ModeApp, KeyOutputZip},
		{ModeInstaller, KeyDeveloperIDInstaller},
		{ModeInstaller, KeyInputPkg},
		{ModeInstaller, KeyOutputSignedPkg},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.key, func(t *testing.T) {
			plan, err := NewPlan(tt.mode, config.FromMap(without(fullConfig(), tt.key)), Options{})
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.Equal(t, config.ErrMissingKey, errors.Cause(err))
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestPlanUnknownMode(t *testing.T) {
	_, err := NewPlan(Mode("dmg"), config.FromMap(fullConfig()), Options{})
	assert.Equal(t, ErrUnknownMode, errors.Cause(err))
}

func writeP12(t *testing.T, dir, cn, password string, notAfter time.Time) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn, OrganizationalUnit: []string{"ABCDE12345"}},
		NotBefore:    notAfter.Add(-time.Hour * 24 * 30),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	data, err := gop12.Encode(rand.Reader, key, cert, nil, password)
	require.NoError(t, err)

	path := filepath.Join(dir, "identity.p12")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestPlanCredentialsImportsIdentity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	values := fullConfig()
	values[KeyApplicationP12] = writeP12(t, t.TempDir(), values[KeyDeveloperIDApplication], "p12pw", now.Add(time.Hour))
	values[KeyP12Password] = "p12pw"

	plan, err := NewPlan(ModeCredentials, config.FromMap(values), Options{Now: func() time.Time { return now }})
	require.NoError(t, err)

	require.Len(t, plan.Steps, 4)
	assert.Equal(t, "check application identity", plan.Steps[2].Name)
	assert.Equal(t,
		`security import "`+values[KeyApplicationP12]+`" -P "p12pw" -T /usr/bin/codesign -T /usr/bin/productsign`,
		plan.Steps[3].Command)
	assert.Contains(t, plan.Secrets, "p12pw")

	var out bytes.Buffer
	assert.NoError(t, plan.Steps[2].Check(context.Background(), &out))
	assert.Contains(t, out.String(), values[KeyDeveloperIDApplication]+" team=ABCDE12345 sha1=")
	assert.Contains(t, out.String(), "expires=2026-01-01")

	expired, err := NewPlan(ModeCredentials, config.FromMap(values), Options{Now: func() time.Time { return now.Add(2 * time.Hour) }})
	require.NoError(t, err)
	assert.Equal(t, identity.ErrExpired, errors.Cause(expired.Steps[2].Check(context.Background(), io.Discard)))
}

func TestPlanCredentialsIdentityMismatch(t *testing.T) {
	values := fullConfig()
	values[KeyInstallerP12] = writeP12(t, t.TempDir(), values[KeyDeveloperIDApplication], "", time.Now().Add(time.Hour))

	plan, err := NewPlan(ModeCredentials, config.FromMap(values), Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 4)
	assert.Equal(t, "check installer identity", plan.Steps[2].Name)
	assert.Equal(t, identity.ErrMismatch, errors.Cause(plan.Steps[2].Check(context.Background(), io.Discard)))
}

func TestPlanCredentialsIdentityNeedsDeveloperID(t *testing.T) {
	values := without(fullConfig(), KeyDeveloperIDApplication)
	values[KeyApplicationP12] = "identity.p12"

	_, err := NewPlan(ModeCredentials, config.FromMap(values), Options{})
	assert.Equal(t, config.ErrMissingKey, errors.Cause(err))
}
