// Package pipeline chains the stages the CLI runs over one scenario file:
// load, declare, evaluate (or render) and report.
package pipeline

// Processor is one stage. It reads what earlier stages left in the context
// and adds its own output or errors.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors; stages without their input skip themselves
		// and the report still shows what was collected.
	}
	return ctx
}
