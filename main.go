package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/fatih/color"

	"github.com/aluedeke/go-notarize/pkg/config"
	"github.com/aluedeke/go-notarize/pkg/notarize"
	"github.com/aluedeke/go-notarize/pkg/runner"
)

const version = "1.0.0"

const usage = `go-notarize - Sign and notarize audio plug-ins and installers

Notarize and sign plugins or installers with Apple's command line tools
(codesign, productsign, xcrun notarytool, xcrun stapler, zip, unzip).

Usage:
  go-notarize <config> --type=<type> [--dry-run] [--verify]
  go-notarize <config> --type=<type> --help-info
  go-notarize --help-info
  go-notarize -h | --help
  go-notarize --version

Options:
  --type=<type>  Pipeline to run: app, installer or credentials
  --dry-run      Print the commands without running them
  --verify       Check the plug-in signatures before uploading (app only)
  --help-info    Display instructions and the configuration keys
  -h --help      Show this help message
  --version      Show version
`

const helpInfo = `
Pipelines:
  credentials  Store the app and installer notarytool profiles in the keychain,
               then import the optional Developer ID .p12 identities.
  app          Sign the VST and AU bundles, zip them, notarize the zip, unzip
               it into ./signed/, then staple and validate both plug-ins.
  installer    Sign the installer package, notarize it, staple and validate it.

Configuration keys (YAML):
  apple_id                       Apple ID used for notarization (credentials)
  team_id                        Developer team ID (credentials)
  app_specific_password          App-specific password (credentials)
  developer_id_application       "Developer ID Application: ..." identity (app)
  developer_id_installer         "Developer ID Installer: ..." identity (installer)
  path_to_unsigned_vst           VST3 bundle to sign (app)
  path_to_unsigned_au            AU component to sign (app)
  output_zip_path                Archive submitted for notarization (app)
  input_pkg                      Unsigned installer package (installer)
  output_signed_pkg              Signed installer package (installer)

Optional keys:
  app_credentials_profile        Default: PixelAppCredentials
  installer_credentials_profile  Default: PixelInstallerCredentials
  signed_dir                     Default: signed
  application_p12                .p12 imported in credentials mode
  installer_p12                  .p12 imported in credentials mode
  p12_password                   Password of the .p12 files

The developer_id_* values are passed to --sign as given: the full identity
name, a fragment of it, or the certificate's SHA-1 hash. --verify and the .p12
check accept the same forms.

Any key missing from the file is read from NOTARIZE_<KEY>, e.g.
NOTARIZE_APP_SPECIFIC_PASSWORD.

Example:
  go-notarize notarize_config.yaml --type credentials
  go-notarize notarize_config.yaml --type app --verify
  go-notarize notarize_config.yaml --type installer
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit, so it can be tested.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	if argv == nil {
		// docopt falls back to os.Args on nil
		argv = []string{}
	}

	helped := false
	parser := &docopt.Parser{
		HelpHandler: func(err error, text string) {
			helped = true
			if err != nil {
				fmt.Fprintln(stderr, text)
				return
			}
			fmt.Fprintln(stdout, text)
		},
	}

	opts, err := parser.ParseArgs(usage, argv, version)
	if err != nil {
		return 1
	}
	if helped {
		return 0
	}

	if info, _ := opts.Bool("--help-info"); info {
		fmt.Fprint(stdout, usage)
		fmt.Fprint(stdout, helpInfo)
		return 0
	}

	if err := runPipeline(ctx, opts, stdout, stderr); err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runPipeline(ctx context.Context, opts docopt.Opts, stdout, stderr io.Writer) error {
	configPath, _ := opts.String("<config>")
	typeArg, _ := opts.String("--type")
	dryRun, _ := opts.Bool("--dry-run")
	verify, _ := opts.Bool("--verify")

	mode, err := notarize.ParseMode(typeArg)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	plan, err := notarize.NewPlan(mode, cfg, notarize.Options{Verify: verify})
	if err != nil {
		return err
	}

	r := runner.New(
		runner.WithOutput(stdout, stderr),
		runner.WithDryRun(dryRun),
		runner.WithSecrets(plan.Secrets...),
	)

	fmt.Fprintf(stdout, "Using configuration: %s\n", cfg.Path())
	fmt.Fprintf(stdout, "Pipeline: %s (%d steps)\n\n", mode, len(plan.Steps))

	return notarize.Run(ctx, plan, r)
}
