// Package plugin inspects macOS audio plug-in bundles (VST, VST3, AU and
// AAX) and the code signatures embedded in their executables.
//
// It is used to check a freshly signed plug-in before it is uploaded for
// notarization:
//
//	err := plugin.Verify("build/Pixel.vst3", plugin.Expectation{
//	    Identity: "Developer ID Application: Pixel Audio (ABCDE12345)",
//	    TeamID:   "ABCDE12345",
//	})
package plugin
