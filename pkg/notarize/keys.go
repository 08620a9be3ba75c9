package notarize

// Configuration keys.
const (
	KeyAppleID                = "apple_id"
	KeyTeamID                 = "team_id"
	KeyAppSpecificPassword    = "app_specific_password"
	KeyDeveloperIDApplication = "developer_id_application"
	KeyDeveloperIDInstaller   = "developer_id_installer"
	KeyUnsignedVST            = "path_to_unsigned_vst"
	KeyUnsignedAU             = "path_to_unsigned_au"
	KeyOutputZip              = "output_zip_path"
	KeyInputPkg               = "input_pkg"
	KeyOutputSignedPkg        = "output_signed_pkg"

	KeyAppProfile       = "app_credentials_profile"
	KeyInstallerProfile = "installer_credentials_profile"
	KeySignedDir        = "signed_dir"
	KeyApplicationP12   = "application_p12"
	KeyInstallerP12     = "installer_p12"
	KeyP12Password      = "p12_password"
)

// Defaults for the optional keys.
const (
	DefaultAppProfile       = "PixelAppCredentials"
	DefaultInstallerProfile = "PixelInstallerCredentials"
	DefaultSignedDir        = "signed"
)
