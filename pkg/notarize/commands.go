package notarize

import (
	"fmt"
	"strings"
)

func quote(s string) string {
	return `"` + s + `"`
}

func quoteAll(paths []string) string {
	q := make([]string, len(paths))
	for i, p := range paths {
		q[i] = quote(p)
	}
	return strings.Join(q, " ")
}

// StoreCredentialsCommand saves an App Store Connect login as a notarytool
// keychain profile.
func StoreCredentialsCommand(profile, appleID, teamID, password string) string {
	return fmt.Sprintf("xcrun notarytool store-credentials %s --apple-id %s --team-id %s --password %s",
		quote(profile), quote(appleID), quote(teamID), quote(password))
}

// ImportIdentityCommand imports a .p12 identity into the login keychain and
// allows the signing tools to use it.
func ImportIdentityCommand(p12Path, password string) string {
	return fmt.Sprintf("security import %s -P %s -T /usr/bin/codesign -T /usr/bin/productsign",
		quote(p12Path), quote(password))
}

// SignPluginCommand signs a plug-in bundle and everything nested in it.
func SignPluginCommand(path, identity string) string {
	return fmt.Sprintf("codesign --deep --force --verify --sign %s %s", quote(identity), quote(path))
}

// ZipCommand archives paths recursively into output.
func ZipCommand(output string, paths ...string) string {
	return fmt.Sprintf("zip -r %s %s", quote(output), quoteAll(paths))
}

// UnzipCommand extracts archive into ./dir/.
func UnzipCommand(archive, dir string) string {
	return fmt.Sprintf("unzip %s -d %s", quote(archive), quote("./"+dir+"/"))
}

// SubmitCommand uploads path to the notary service and waits for the
// verdict.
func SubmitCommand(path, profile string) string {
	return fmt.Sprintf("xcrun notarytool submit %s --keychain-profile %s --wait", quote(path), quote(profile))
}

// StapleCommand attaches the notarization ticket to path.
func StapleCommand(path string) string {
	return fmt.Sprintf("xcrun stapler staple %s", quote(path))
}

// ValidateCommand checks the stapled ticket of path.
func ValidateCommand(path string) string {
	return fmt.Sprintf("xcrun stapler validate %s", quote(path))
}

// SignInstallerCommand signs an installer package into output.
func SignInstallerCommand(input, output, identity string) string {
	return fmt.Sprintf("productsign --sign %s %s %s", quote(identity), quote(input), quote(output))
}

// SignedPath is where an archived plug-in lands after the notarized archive
// is unzipped into dir.
func SignedPath(dir, path string) string {
	return fmt.Sprintf("./%s/%s", dir, path)
}
