package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/darkwire-sim/darkwire/internal/def"
)

// LoadResult carries the missions compiled from a definition source
// plus the raw CUE value for additional processing.
type LoadResult struct {
	Missions  []*def.Mission
	CUEValue  cue.Value
	FileCount int
}

// LoadDir loads every CUE file under a directory as one instance and
// compiles each entry under the top-level "mission" struct. Compile
// errors are collected per mission rather than failing fast, so a bad
// definition does not hide the rest.
func LoadDir(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("definitions directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("accessing definitions directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning directory: %w", err)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}
	errs := compileMissions(value, result)
	return result, errs
}

// LoadString compiles missions from inline CUE source. Used by the
// conformance harness and tests.
func LoadString(src string) (*LoadResult, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result := &LoadResult{CUEValue: value, FileCount: 1}
	errs := compileMissions(value, result)
	return result, errs
}

func compileMissions(value cue.Value, result *LoadResult) []error {
	var errs []error

	missionsVal := value.LookupPath(cue.ParsePath("mission"))
	if !missionsVal.Exists() {
		return []error{fmt.Errorf(`no top-level "mission" struct found`)}
	}

	iter, err := missionsVal.Fields()
	if err != nil {
		return []error{formatCUEError(err)}
	}
	for iter.Next() {
		m, compileErr := CompileMission(iter.Value())
		if compileErr != nil {
			errs = append(errs, fmt.Errorf("mission %s: %w", iter.Label(), compileErr))
			continue
		}
		result.Missions = append(result.Missions, m)
	}

	// Stable order regardless of CUE iteration order.
	sort.Slice(result.Missions, func(i, j int) bool {
		return result.Missions[i].ID < result.Missions[j].ID
	})
	return errs
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
