package notarize

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// CommandRunner executes shell commands. *runner.Runner implements it.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
	DryRun() bool
	Stdout() io.Writer
}

// Run executes the plan in order and returns the first error. Steps after a
// failure are not run and nothing already done is rolled back.
func Run(ctx context.Context, plan *Plan, r CommandRunner) error {
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "before step %d (%s)", i+1, step.Name)
		}

		if step.Command != "" {
			if err := r.Run(ctx, step.Command); err != nil {
				return errors.Wrapf(err, "step %d (%s)", i+1, step.Name)
			}
			continue
		}

		if step.Check == nil {
			continue
		}
		if r.DryRun() {
			color.New(color.FgYellow).Fprintf(r.Stdout(), "[dry-run] check: %s\n", step.Name)
			continue
		}
		color.New(color.FgCyan).Fprintf(r.Stdout(), "Checking: %s\n", step.Name)
		if err := step.Check(ctx, r.Stdout()); err != nil {
			return errors.Wrapf(err, "step %d (%s)", i+1, step.Name)
		}
	}

	color.New(color.FgGreen).Fprintf(r.Stdout(), "%s pipeline completed (%d steps)\n", plan.Mode, len(plan.Steps))
	return nil
}
