package pipeline

import (
	"context"
	"io"
	"log"

	"github.com/funvibe/typesubst/internal/config"
	"github.com/funvibe/typesubst/internal/scenario"
)

// PipelineContext carries one scenario file through the stages.
type PipelineContext struct {
	Context  context.Context
	FilePath string
	Source   []byte
	Settings *config.Settings
	Logger   *log.Logger

	Document *scenario.Document
	Suite    *scenario.Suite
	Results  []scenario.Result
	Errors   []error
}

// NewPipelineContext prepares a context for source read from path, with
// default settings and tracing off.
func NewPipelineContext(path string, source []byte) *PipelineContext {
	return &PipelineContext{
		Context:  context.Background(),
		FilePath: path,
		Source:   source,
		Settings: config.DefaultSettings(),
		Logger:   log.New(io.Discard, "", 0),
	}
}

func (ctx *PipelineContext) addError(err error) {
	ctx.Errors = append(ctx.Errors, err)
}

// Summary counts results by outcome.
type Summary struct {
	Passed  int
	Failed  int
	Crashed int
}

// Summary counts the results collected so far. A crash is an internal error
// the case did not expect.
func (ctx *PipelineContext) Summary() Summary {
	var s Summary
	for i := range ctx.Results {
		r := &ctx.Results[i]
		switch {
		case r.Passed():
			s.Passed++
		case r.Internal != nil:
			s.Crashed++
		default:
			s.Failed++
		}
	}
	return s
}
