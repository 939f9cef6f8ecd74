package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/croftlab/agrisense/internal/ir"
)

// LoadMode controls how errors are handled during knowledge base loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Bundle is a compiled knowledge base: the rules plus the output kinds
// whose facts count as conclusions.
type Bundle struct {
	Rules     []ir.Rule
	Outputs   []string
	CUEValue  cue.Value // the raw CUE value for additional processing
	FileCount int       // number of CUE files found
}

// LoadDir loads and compiles every CUE file in a directory into a
// Bundle. The files share a package clause and must unify into a single
// instance with a top-level "rules" struct and an "output" list of fact
// kinds.
//
// If mode is LoadModeFailFast, returns on the first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*Bundle, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("rules directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("error accessing rules directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&CompileError{Field: "cue", Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	bundle := &Bundle{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error

	outputVal := value.LookupPath(cue.ParsePath("output"))
	if !outputVal.Exists() {
		errs = append(errs, &CompileError{
			Field:   "output",
			Message: "knowledge base requires a top-level 'output' list of conclusion kinds",
			Pos:     value.Pos(),
		})
		if mode == LoadModeFailFast {
			return bundle, errs
		}
	} else {
		outputs, err := parseOutputs(outputVal)
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return bundle, errs
			}
		}
		bundle.Outputs = outputs
	}

	rulesVal := value.LookupPath(cue.ParsePath("rules"))
	if rulesVal.Exists() {
		iter, iterErr := rulesVal.Fields()
		if iterErr != nil {
			errs = append(errs, formatCUEError(iterErr))
			if mode == LoadModeFailFast {
				return bundle, errs
			}
		} else {
			for iter.Next() {
				rule, compileErr := CompileRule(iter.Value())
				if compileErr != nil {
					errs = append(errs, compileErr)
					if mode == LoadModeFailFast {
						return bundle, errs
					}
					continue
				}
				bundle.Rules = append(bundle.Rules, *rule)
			}
		}
	}

	if len(bundle.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{
			Field:   "rules",
			Message: "no rules found in knowledge base",
			Pos:     value.Pos(),
		})
	}

	return bundle, errs
}

// parseOutputs compiles the top-level output kind list.
func parseOutputs(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "output",
			Message: "output must be a list of fact kind strings",
			Pos:     v.Pos(),
		}
	}

	var outputs []string
	for iter.Next() {
		kind, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   "output",
				Message: "output entries must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		outputs = append(outputs, kind)
	}
	return outputs, nil
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
	return files, err
}
