// Where: internal/command/synth.go
// What: synth and plan commands.
// Why: Render the declared stack without touching AWS.
package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/domain/verify"
	"github.com/poruru/efstack/internal/infra/render"
)

func runSynth(cli CLI, deps Dependencies, out io.Writer) int {
	p, err := loadProject(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	format, err := synthFormat(cli.Synth)
	if err != nil {
		return exitWithError(out, err)
	}
	tpl, err := stack.Build(p.options)
	if err != nil {
		return exitWithError(out, err)
	}
	if report := verify.Check(tpl); !report.OK() {
		if !cli.Synth.NoVerify {
			writeFindings(deps.ErrOut, report)
			return exitWithError(out, fmt.Errorf("%d invariant violation(s); use --no-verify to emit anyway", len(report.Findings)))
		}
		writeFindings(deps.ErrOut, report)
	}

	if cli.Synth.Output == "" {
		data, err := render.Encode(tpl, format)
		if err != nil {
			return exitWithError(out, err)
		}
		_, _ = out.Write(data)
		return 0
	}
	if err := render.WriteFile(cli.Synth.Output, tpl, format); err != nil {
		return exitWithError(out, err)
	}
	ui := commandUI(out, resolveEmojiEnabled(out, cli.NoEmoji, deps.LookupEnv))
	ui.Success(fmt.Sprintf("Wrote %s (%d resources, snapshot %s)", cli.Synth.Output, len(tpl.ResourceIDs()), p.snapshot))
	return 0
}

func synthFormat(flags SynthCmd) (render.Format, error) {
	if strings.TrimSpace(flags.Format) != "" {
		return render.ParseFormat(flags.Format)
	}
	if flags.Output != "" {
		return render.FormatFromPath(flags.Output), nil
	}
	return render.FormatJSON, nil
}

func runPlan(cli CLI, deps Dependencies, out io.Writer) int {
	p, err := loadProject(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	tpl, err := stack.Build(p.options)
	if err != nil {
		return exitWithError(out, err)
	}
	plan := render.NewPlan(
		p.options.StackName,
		string(p.snapshot),
		p.options.Features.Names(),
		stack.Steps(p.options.Features),
		tpl,
	)
	text, err := render.RenderPlan(plan)
	if err != nil {
		return exitWithError(out, err)
	}
	fmt.Fprintln(out, text)
	return 0
}

func writeFindings(w io.Writer, report verify.Report) {
	for _, finding := range report.Findings {
		fmt.Fprintln(w, finding.String())
	}
}
