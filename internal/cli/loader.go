package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tether/internal/compiler"
	"github.com/roach88/tether/internal/schema"
)

// LoadResult contains the schemas compiled from a set of paths.
type LoadResult struct {
	Catalog   *compiler.Catalog
	Files     []string // CUE files compiled, in order
	Cycles    []compiler.CycleWarning
	FileCount int
}

// LoadError represents an error that occurred while loading schemas.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemas compiles every CUE file named by paths. A directory
// contributes all .cue files below it, in lexical order.
func LoadSchemas(paths []string) (*LoadResult, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no schema files given"}
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema path not found: %s", p)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", p, err)}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindCUEFiles(p)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %v", paths)}
	}

	catalog, err := compiler.CompileFiles(nil, files...)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{
		Catalog:   catalog,
		Files:     files,
		Cycles:    compiler.AnalyzeCycles(catalog.Records()),
		FileCount: len(files),
	}, nil
}

// Record looks up a schema by name.
func (r *LoadResult) Record(name string) (*schema.Record, error) {
	if name == "" {
		names := r.Catalog.Names()
		if len(names) == 1 {
			name = names[0]
		} else {
			return nil, &LoadError{Code: ErrCodeNoSchema, Message: fmt.Sprintf("--schema is required, have %v", names)}
		}
	}
	rec, ok := r.Catalog.Lookup(name)
	if !ok {
		return nil, &LoadError{Code: ErrCodeNoSchema, Message: fmt.Sprintf("unknown schema %q, have %v", name, r.Catalog.Names())}
	}
	return rec, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) error {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	if _, ok := compiler.AsValidationErrors(err); ok {
		return err
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoSchema    = "E008" // Schema not selected or unknown
	ErrCodeBadInput    = "E009" // Reply or variable input unreadable
	ErrCodeConfig      = "E010" // Configuration or credentials problem

	ErrCodeInvalidReply = "E300" // Reply violates its schema
	ErrCodeExhausted    = "E301" // Strategy spent its budget without a valid reply
)

// errorCode picks the code to report for err.
func errorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	if es, ok := compiler.AsValidationErrors(err); ok && len(es) > 0 {
		return es[0].Code
	}
	return ErrCodeGeneric
}

// commandError reports err through the formatter and returns it as an
// exit-code-2 error.
func commandError(f *OutputFormatter, err error) error {
	code := errorCode(err)
	var details any
	if es, ok := compiler.AsValidationErrors(err); ok {
		details = es
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(ExitCommandError, code, err)
}
