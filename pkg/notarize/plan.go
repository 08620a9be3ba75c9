package notarize

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/aluedeke/go-notarize/pkg/config"
	"github.com/aluedeke/go-notarize/pkg/identity"
	"github.com/aluedeke/go-notarize/pkg/plugin"
)

// Step is one unit of a pipeline: either a shell command or an in-process
// check. Checks write their findings to out.
type Step struct {
	Name    string
	Command string
	Check   func(ctx context.Context, out io.Writer) error
}

// Plan is a fully resolved pipeline.
type Plan struct {
	Mode  Mode
	Steps []Step
	// Secrets are configuration values that must not be printed.
	Secrets []string
}

// Commands returns the shell commands of the plan in order.
func (p *Plan) Commands() []string {
	var cmds []string
	for _, s := range p.Steps {
		if s.Command != "" {
			cmds = append(cmds, s.Command)
		}
	}
	return cmds
}

// Options tune planning.
type Options struct {
	// Verify inserts a signature check of both plug-ins after signing.
	Verify bool
	// Now is used for certificate expiry checks; defaults to time.Now.
	Now func() time.Time
}

// resolver records the first lookup failure so a plan can be built with
// straight-line code.
type resolver struct {
	cfg *config.Config
	err error
}

func (r *resolver) get(key string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.cfg.Get(key)
	if err != nil {
		r.err = err
	}
	return v
}

// NewPlan resolves every key mode needs and builds its steps. Nothing is
// executed.
func NewPlan(mode Mode, cfg *config.Config, opts Options) (*Plan, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var plan *Plan
	var err error
	switch mode {
	case ModeCredentials:
		plan, err = planCredentials(cfg, opts)
	case ModeApp:
		plan, err = planApp(cfg, opts)
	case ModeInstaller:
		plan, err = planInstaller(cfg)
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", mode)
	}
	if err != nil {
		return nil, err
	}
	plan.Mode = mode
	return plan, nil
}

func planCredentials(cfg *config.Config, opts Options) (*Plan, error) {
	r := &resolver{cfg: cfg}
	appleID := r.get(KeyAppleID)
	teamID := r.get(KeyTeamID)
	password := r.get(KeyAppSpecificPassword)
	if r.err != nil {
		return nil, r.err
	}

	appProfile := cfg.GetDefault(KeyAppProfile, DefaultAppProfile)
	installerProfile := cfg.GetDefault(KeyInstallerProfile, DefaultInstallerProfile)

	plan := &Plan{
		Steps: []Step{
			{Name: "store app credentials", Command: StoreCredentialsCommand(appProfile, appleID, teamID, password)},
			{Name: "store installer credentials", Command: StoreCredentialsCommand(installerProfile, appleID, teamID, password)},
		},
		Secrets: []string{password},
	}

	p12Password := cfg.GetDefault(KeyP12Password, "")
	for _, imp := range []struct {
		name, p12Key, identityKey string
	}{
		{"application", KeyApplicationP12, KeyDeveloperIDApplication},
		{"installer", KeyInstallerP12, KeyDeveloperIDInstaller},
	} {
		if !cfg.Has(imp.p12Key) {
			continue
		}
		p12Path := r.get(imp.p12Key)
		expected := r.get(imp.identityKey)
		if r.err != nil {
			return nil, r.err
		}
		plan.Steps = append(plan.Steps,
			Step{Name: "check " + imp.name + " identity", Check: checkIdentity(p12Path, p12Password, expected, opts.Now)},
			Step{Name: "import " + imp.name + " identity", Command: ImportIdentityCommand(p12Path, p12Password)},
		)
		plan.Secrets = append(plan.Secrets, p12Password)
	}

	return plan, nil
}

func checkIdentity(path, password, expected string, now func() time.Time) func(context.Context, io.Writer) error {
	return func(_ context.Context, out io.Writer) error {
		id, err := identity.Load(path, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s team=%s sha1=%s expires=%s\n",
			id.CommonName, id.TeamID, id.Fingerprint, id.Certificate.NotAfter.Format("2006-01-02"))
		return id.Check(expected, now())
	}
}

func planApp(cfg *config.Config, opts Options) (*Plan, error) {
	r := &resolver{cfg: cfg}
	developerID := r.get(KeyDeveloperIDApplication)
	vst := r.get(KeyUnsignedVST)
	au := r.get(KeyUnsignedAU)
	zip := r.get(KeyOutputZip)
	if r.err != nil {
		return nil, r.err
	}

	profile := cfg.GetDefault(KeyAppProfile, DefaultAppProfile)
	signedDir := cfg.GetDefault(KeySignedDir, DefaultSignedDir)

	steps := []Step{
		{Name: "sign VST", Command: SignPluginCommand(vst, developerID)},
		{Name: "sign AU", Command: SignPluginCommand(au, developerID)},
	}

	if opts.Verify {
		expect := plugin.Expectation{
			Identity: developerID,
			TeamID:   cfg.GetDefault(KeyTeamID, ""),
		}
		steps = append(steps,
			Step{Name: "verify VST signature", Check: verifyPlugin(vst, expect)},
			Step{Name: "verify AU signature", Check: verifyPlugin(au, expect)},
		)
	}

	steps = append(steps, Step{Name: "zip plug-ins", Command: ZipCommand(zip, vst, au)})
	if opts.Verify {
		steps = append(steps, Step{Name: "verify archive", Check: verifyArchive(zip, vst, au)})
	}

	steps = append(steps,
		Step{Name: "notarize plug-ins", Command: SubmitCommand(zip, profile)},
		Step{Name: "unzip plug-ins", Command: UnzipCommand(zip, signedDir)},
		Step{Name: "staple VST", Command: StapleCommand(SignedPath(signedDir, vst))},
		Step{Name: "staple AU", Command: StapleCommand(SignedPath(signedDir, au))},
		Step{Name: "validate VST", Command: ValidateCommand(SignedPath(signedDir, vst))},
		Step{Name: "validate AU", Command: ValidateCommand(SignedPath(signedDir, au))},
	)

	return &Plan{Steps: steps}, nil
}

func verifyPlugin(path string, expect plugin.Expectation) func(context.Context, io.Writer) error {
	return func(_ context.Context, out io.Writer) error {
		b, err := plugin.OpenBundle(path)
		if err != nil {
			return err
		}
		sig, err := plugin.ReadSignature(b.ExecutablePath())
		if err != nil {
			return err
		}
		fmt.Fprint(out, plugin.Describe(b, sig))
		return plugin.Check(b, sig, expect)
	}
}

func verifyArchive(archive string, bundles ...string) func(context.Context, io.Writer) error {
	return func(context.Context, io.Writer) error {
		return plugin.CheckArchive(archive, bundles...)
	}
}

func planInstaller(cfg *config.Config) (*Plan, error) {
	r := &resolver{cfg: cfg}
	developerID := r.get(KeyDeveloperIDInstaller)
	input := r.get(KeyInputPkg)
	output := r.get(KeyOutputSignedPkg)
	if r.err != nil {
		return nil, r.err
	}

	profile := cfg.GetDefault(KeyInstallerProfile, DefaultInstallerProfile)

	return &Plan{
		Steps: []Step{
			{Name: "sign installer", Command: SignInstallerCommand(input, output, developerID)},
			{Name: "notarize installer", Command: SubmitCommand(output, profile)},
			{Name: "staple installer", Command: StapleCommand(output)},
			{Name: "validate installer", Command: ValidateCommand(output)},
		},
	}, nil
}
