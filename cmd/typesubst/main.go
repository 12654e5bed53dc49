package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/funvibe/typesubst/internal/config"
	"github.com/funvibe/typesubst/internal/diagnostics"
	"github.com/funvibe/typesubst/internal/pipeline"
	"github.com/mattn/go-isatty"
)

const usage = `usage: typesubst run|check|render [-config file] [-v] [-ids] scenario.yaml...

  run     evaluate every case and print its result
  check   evaluate every case, print failures, exit 1 on any
  render  parse every case input and print it back
`

// Exit codes.
const (
	exitOK       = 0
	exitFailed   = 1
	exitInternal = 2
)

type options struct {
	mode       pipeline.Mode
	configPath string
	verbose    bool
	files      []string
}

func main() {
	if os.Getenv("TYPESUBST_TEST_MODE") == "1" {
		config.IsTestMode = true
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string) (*options, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	opts := &options{}
	switch args[0] {
	case "run":
		opts.mode = pipeline.ModeRun
	case "check":
		opts.mode = pipeline.ModeCheck
	case "render":
		opts.mode = pipeline.ModeRender
	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "-v" || arg == "--verbose":
			opts.verbose = true
		case arg == "-ids":
			config.ShowVariableIDs = true
		case arg == "-config" || arg == "--config":
			if i+1 >= len(rest) {
				return nil, fmt.Errorf("%s needs a file", arg)
			}
			i++
			opts.configPath = rest[i]
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %s", arg)
		default:
			opts.files = append(opts.files, arg)
		}
	}
	if len(opts.files) == 0 {
		return nil, fmt.Errorf("no scenario files given")
	}
	return opts, nil
}

func loadSettings(opts *options) (*config.Settings, error) {
	path := opts.configPath
	if path == "" {
		found, err := config.FindSettings(".")
		if err != nil {
			return nil, err
		}
		if found == "" {
			return config.DefaultSettings(), nil
		}
		path = found
	}
	return config.LoadSettings(path)
}

// useColor resolves the auto setting against the terminal and NO_COLOR.
func useColor(mode config.ColorMode, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func run(args []string, stdout, stderr io.Writer) (code int) {
	// Internal errors escaping a stage end the run with a crash report.
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*diagnostics.InternalError)
			if !ok {
				panic(r)
			}
			ie.WriteReport(stderr)
			fmt.Fprintln(stderr, "This is a bug. Please report it.")
			code = exitInternal
		}
	}()

	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n\n%s", err, usage)
		return exitFailed
	}
	settings, err := loadSettings(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitFailed
	}
	logger := log.New(io.Discard, "", 0)
	if settings.Trace || opts.verbose {
		logger = log.New(stderr, "[typesubst] ", log.Lmsgprefix)
	}

	stage := pipeline.Processor(&pipeline.EvaluateProcessor{})
	if opts.mode == pipeline.ModeRender {
		stage = &pipeline.RenderProcessor{}
	}
	p := pipeline.New(
		&pipeline.LoadProcessor{},
		&pipeline.DeclareProcessor{},
		stage,
		&pipeline.ReportProcessor{
			Mode:  opts.mode,
			Out:   stdout,
			Err:   stderr,
			Color: useColor(settings.Color, stdout),
		},
	)

	code = exitOK
	for _, path := range opts.files {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading file %s: %s\n", path, err)
			code = max(code, exitFailed)
			continue
		}
		ctx := pipeline.NewPipelineContext(path, source)
		ctx.Settings = settings
		ctx.Logger = logger
		final := p.Run(ctx)

		if len(final.Errors) > 0 {
			fmt.Fprintf(stderr, "Errors in %s:\n", path)
			for _, err := range final.Errors {
				fmt.Fprintf(stderr, "- %s\n", err.Error())
			}
			code = max(code, exitFailed)
		}
		s := final.Summary()
		switch {
		case s.Crashed > 0:
			code = exitInternal
		case s.Failed > 0 && opts.mode != pipeline.ModeRun:
			code = max(code, exitFailed)
		}
	}
	return code
}
