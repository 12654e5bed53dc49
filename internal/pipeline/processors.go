package pipeline

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/funvibe/typesubst/internal/scenario"
	"github.com/pkg/errors"
)

// LoadProcessor decodes the scenario source.
type LoadProcessor struct{}

func (lp *LoadProcessor) Process(ctx *PipelineContext) *PipelineContext {
	doc, err := scenario.Parse(ctx.Source, ctx.FilePath)
	if err != nil {
		ctx.addError(err)
		return ctx
	}
	ctx.Logger.Printf("%s: %d classes, %d substitutors, %d cases",
		ctx.FilePath, len(doc.Classes), len(doc.Substitutors), len(doc.Cases))
	ctx.Document = doc
	return ctx
}

// DeclareProcessor builds the registry and substitutors.
type DeclareProcessor struct{}

func (dp *DeclareProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Document == nil {
		return ctx
	}
	suite, err := scenario.Declare(ctx.Document)
	if err != nil {
		ctx.addError(errors.Wrap(err, ctx.FilePath))
		return ctx
	}
	for _, name := range slices.Sorted(maps.Keys(suite.Substitutors)) {
		ctx.Logger.Printf("substitutor %s = %s", name, suite.Substitutors[name])
	}
	ctx.Suite = suite
	return ctx
}

// EvaluateProcessor runs every case with the context's settings.
type EvaluateProcessor struct{}

func (ep *EvaluateProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Suite == nil {
		return ctx
	}
	results, err := scenario.Evaluate(ctx.Context, ctx.Suite, scenario.Options{
		Parallelism:     ctx.Settings.Parallelism,
		KeepAnnotations: ctx.Settings.KeepAnnotations,
		Logger:          ctx.Logger,
	})
	if err != nil {
		ctx.addError(err)
		return ctx
	}
	ctx.Results = results
	return ctx
}

// RenderProcessor parses every case input and keeps it unchanged, so the
// report shows how the notation was read.
type RenderProcessor struct{}

func (rp *RenderProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Suite == nil {
		return ctx
	}
	for _, c := range ctx.Suite.Cases {
		r := scenario.Result{Case: c}
		t, err := ctx.Suite.ParseInput(c)
		if err != nil {
			r.Err = err
			r.Failure = err.Error()
		}
		r.Input, r.Output = t, t
		ctx.Results = append(ctx.Results, r)
	}
	return ctx
}

// Mode selects what ReportProcessor prints.
type Mode int

const (
	// ModeRun prints every result.
	ModeRun Mode = iota
	// ModeCheck prints failures and a summary.
	ModeCheck
	// ModeRender prints parsed inputs.
	ModeRender
)

const (
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

// ReportProcessor writes results to Out and crash reports to Err.
type ReportProcessor struct {
	Mode  Mode
	Out   io.Writer
	Err   io.Writer
	Color bool
}

func (rp *ReportProcessor) paint(code, s string) string {
	if !rp.Color {
		return s
	}
	return code + s + ansiReset
}

func (rp *ReportProcessor) Process(ctx *PipelineContext) *PipelineContext {
	for i := range ctx.Results {
		r := &ctx.Results[i]
		switch rp.Mode {
		case ModeRender:
			rp.render(r)
		case ModeRun:
			rp.result(r, true)
		case ModeCheck:
			if !r.Passed() {
				rp.result(r, false)
			}
		}
	}
	if rp.Mode == ModeCheck && ctx.Suite != nil {
		s := ctx.Summary()
		fmt.Fprintf(rp.Out, "%s: %d passed, %d failed, %d crashed\n", ctx.FilePath, s.Passed, s.Failed, s.Crashed)
	}
	return ctx
}

func (rp *ReportProcessor) render(r *scenario.Result) {
	if r.Err != nil {
		fmt.Fprintf(rp.Out, "%s: %s\n", r.Case.Name, rp.paint(ansiRed, r.Err.Error()))
		return
	}
	fmt.Fprintf(rp.Out, "%s: %s\n", r.Case.Name, r.Input)
}

func (rp *ReportProcessor) result(r *scenario.Result, verbose bool) {
	switch {
	case r.Passed():
		fmt.Fprintf(rp.Out, "%s %s", rp.paint(ansiGreen, "PASS"), r.Case.Name)
	case r.Internal != nil:
		fmt.Fprintf(rp.Out, "%s %s", rp.paint(ansiYellow, "CRASH"), r.Case.Name)
	default:
		fmt.Fprintf(rp.Out, "%s %s", rp.paint(ansiRed, "FAIL"), r.Case.Name)
	}
	switch {
	case r.Input != nil && r.Output != nil:
		fmt.Fprintf(rp.Out, ": %s -> %s", r.Input, r.Output)
	case r.Input != nil:
		fmt.Fprintf(rp.Out, ": %s", r.Input)
	}
	fmt.Fprintln(rp.Out)
	if !r.Passed() {
		fmt.Fprintf(rp.Out, "  %s\n", r.Failure)
	}
	if r.Internal != nil && !r.Passed() {
		r.Internal.WriteReport(rp.Err)
	}
	if !verbose {
		return
	}
	for _, f := range r.Fixed {
		fmt.Fprintf(rp.Out, "  %s\n", f)
	}
	for _, n := range r.Nodes {
		fmt.Fprintf(rp.Out, "  #%s\n", n)
	}
}
