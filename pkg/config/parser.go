package config

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"

	"github.com/sitestack/sitestack/pkg/stack"
)

// Parser parses and validates CUE stack configuration files.
type Parser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	computed       *StarlarkEvaluator
	validator      *validator.Validate
}

// NewParser creates a new stack configuration parser.
func NewParser() *Parser {
	return &Parser{
		ctx:            cuecontext.New(),
		schemaRegistry: NewSchemaRegistry(),
		computed:       NewStarlarkEvaluator(30 * time.Second),
		validator:      validator.New(),
	}
}

// Parse parses CUE configuration from the given sources. Parse errors are
// collected into the returned ParsedStack rather than aborting, so one
// invocation reports every problem it can find.
func (p *Parser) Parse(ctx context.Context, sources []string) (*ParsedStack, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		if info.IsDir() {
			val, files, errs := p.loadDirectory(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs := p.loadFile(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, source)
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedStack{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		parseErrors = append(parseErrors, p.convertCUEErrors(err)...)
		return &ParsedStack{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	return p.extractStack(ctx, cueValue, sourceFiles)
}

// ParseInline parses inline CUE content.
func (p *Parser) ParseInline(ctx context.Context, content string) (*ParsedStack, error) {
	val := p.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedStack{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      p.convertCUEErrors(err),
		}, nil
	}

	return p.extractStack(ctx, val, []string{"inline"})
}

// loadDirectory loads a directory as a CUE package.
func (p *Parser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, p.convertCUEErrors(inst.Err)
	}

	val := p.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, p.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (p *Parser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := p.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, p.convertCUEErrors(err)
	}

	return val, nil
}

// extractStack extracts the stack configuration from a CUE value.
func (p *Parser) extractStack(ctx context.Context, val cue.Value, sourceFiles []string) (*ParsedStack, error) {
	parsed := &ParsedStack{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	stackVal := val.LookupPath(cue.ParsePath("stack"))
	if !stackVal.Exists() {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Path:     "stack",
			Message:  "configuration has no top-level stack block",
			Severity: "error",
		})
		return parsed, nil
	}

	// Schema gate: same regexes the pure validator enforces, but with
	// source positions.
	var raw map[string]interface{}
	if err := stackVal.Decode(&raw); err == nil {
		if err := p.schemaRegistry.ValidateStack(ctx, raw); err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "stack",
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}

	var cfg stack.StackConfig
	if err := stackVal.Decode(&cfg); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			Path:     "stack",
			Message:  fmt.Sprintf("failed to decode stack: %v", err),
			Severity: "error",
		})
		return parsed, nil
	}

	if err := p.validator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			for _, fe := range verrs {
				parsed.Errors = append(parsed.Errors, ValidationError{
					Path:     "stack." + fe.Field(),
					Message:  fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()),
					Severity: "error",
				})
			}
		} else {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "stack",
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}

	parsed.Stack = cfg

	// Optional computed snippet.
	computedVal := val.LookupPath(cue.ParsePath("computed"))
	if computedVal.Exists() {
		script, err := computedVal.String()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "computed",
				Message:  fmt.Sprintf("computed must be a string: %v", err),
				Severity: "error",
			})
			return parsed, nil
		}

		input := map[string]interface{}{
			"name":              cfg.Name,
			"region":            cfg.Region,
			"domain_name":       cfg.DomainName,
			"api_domain_prefix": cfg.APIDomainPrefix,
		}
		output, err := p.EvaluateComputed(ctx, script, input)
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				Path:     "computed",
				Message:  err.Error(),
				Severity: "error",
			})
			return parsed, nil
		}
		parsed.Computed = output
	}

	return parsed, nil
}

// EvaluateComputed executes a computed snippet for procedural config logic.
func (p *Parser) EvaluateComputed(ctx context.Context, script string, input map[string]interface{}) (map[string]interface{}, error) {
	result, err := p.computed.Evaluate(ctx, script, input)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, fmt.Errorf("computed evaluation error: %s", result.Error)
	}

	return result.Output, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (p *Parser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// SchemaRegistry returns the parser's schema registry.
func (p *Parser) SchemaRegistry() *SchemaRegistry {
	return p.schemaRegistry
}

// ExportJSON exports a parsed stack to indented JSON.
func (p *Parser) ExportJSON(parsed *ParsedStack) ([]byte, error) {
	return json.MarshalIndent(parsed, "", "  ")
}

// FindSources returns all CUE files under dir, for watch mode.
func FindSources(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}
