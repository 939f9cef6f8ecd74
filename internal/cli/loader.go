package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/croftlab/agrisense/internal/compiler"
	"github.com/croftlab/agrisense/internal/rulelib"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // generic/unknown error
	ErrCodeNotFound     = "E005" // path not found
	ErrCodeCompile      = "E101" // rule compilation error
	ErrCodeLibrary      = "E110" // rule library validation error
	ErrCodeObservations = "E201" // observation file error
	ErrCodeTrace        = "E301" // trace database error
)

// codeForLoadError classifies a compiler error for CLI output.
func codeForLoadError(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		if ce.Field == "dir" {
			return ErrCodeNotFound
		}
		return ErrCodeCompile
	}
	return ErrCodeGeneric
}

// loadLibrary compiles and validates a CUE rule directory, reporting
// every problem found rather than stopping at the first.
func loadLibrary(formatter *OutputFormatter, dir string) (*rulelib.Library, error) {
	bundle, loadErrs := compiler.LoadDir(dir, compiler.LoadModeCollectAll)
	if len(loadErrs) > 0 {
		msgs := make([]string, len(loadErrs))
		for i, err := range loadErrs {
			msgs[i] = err.Error()
		}
		formatter.Error(codeForLoadError(loadErrs[0]),
			fmt.Sprintf("rule compilation failed: %s", strings.Join(msgs, "; ")), msgs)
		return nil, NewExitError(ExitCommandError, "rule compilation failed")
	}

	formatter.VerboseLog("Compiled %d rule(s) from %d file(s) in %s",
		len(bundle.Rules), bundle.FileCount, dir)

	lib, err := rulelib.New(bundle.Rules, bundle.Outputs)
	if err != nil {
		formatter.Error(ErrCodeLibrary, err.Error(), nil)
		return nil, NewExitError(ExitCommandError, "rule validation failed")
	}

	return lib, nil
}
