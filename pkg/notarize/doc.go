// Package notarize builds and runs the fixed signing and notarization
// pipelines for audio plug-ins and installer packages.
//
// A pipeline is planned from the configuration first, so a missing key is
// reported before anything runs, and then executed step by step, stopping
// at the first failure:
//
//	plan, err := notarize.NewPlan(notarize.ModeApp, cfg, notarize.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = notarize.Run(ctx, plan, runner.New())
//
// The commands are the macOS tools codesign, productsign, zip, unzip and
// xcrun (notarytool, stapler).
package notarize
