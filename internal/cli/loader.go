package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/atrium-ui/app-state/internal/tree"
)

// LoadError represents an error that occurred while loading a tree or seed.
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

// LoadSeed loads a seed from a .cue, .yaml, .yml or .json file, or from a
// directory holding one CUE package. Every top-level field is a scope and
// must itself be an object.
func LoadSeed(path string) (map[string]tree.Map, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("seed not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing seed: %v", err)}
	}

	var value tree.Value
	if info.IsDir() {
		value, err = loadCUEDir(path)
	} else {
		value, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	top, ok := value.(tree.Map)
	if !ok {
		return nil, &LoadError{Code: ErrCodeInvalidSeed, Message: fmt.Sprintf("%s: seed must be an object of scopes", path)}
	}
	seed := make(map[string]tree.Map, len(top))
	for scope, v := range top {
		m, ok := v.(tree.Map)
		if !ok {
			return nil, &LoadError{Code: ErrCodeInvalidSeed, Message: fmt.Sprintf("%s: scope %q must be an object", path, scope)}
		}
		seed[scope] = m
	}
	return seed, nil
}

// LoadTree loads a single tree from a file. The format follows the
// extension; anything unrecognised is read as JSON.
func LoadTree(path string) (tree.Map, error) {
	value, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	m, ok := value.(tree.Map)
	if !ok {
		return nil, &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%s: top level must be an object", path)}
	}
	return m, nil
}

func loadFile(path string) (tree.Value, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return decodeCUE(cuecontext.New().CompileBytes(data, cue.Filename(path)))
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err)}
		}
		return convertLoaded(path, raw)
	default:
		v, err := tree.ParseValue(data)
		if err != nil {
			return nil, loadValueError(path, err)
		}
		return v, nil
	}
}

// loadCUEDir builds the CUE package in dir.
func loadCUEDir(dir string) (tree.Value, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err), Pos: firstPos(inst.Err)}
	}

	return decodeCUE(cuecontext.New().BuildInstance(inst))
}

// decodeCUE exports a concrete CUE value as a tree.
func decodeCUE(value cue.Value) (tree.Value, error) {
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Pos: firstPos(err)}
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("exporting CUE value: %v", err), Pos: firstPos(err)}
	}
	v, err := tree.ParseValue(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidValue, Message: err.Error()}
	}
	return v, nil
}

func convertLoaded(path string, raw any) (tree.Value, error) {
	v, err := tree.FromGo(raw)
	if err != nil {
		return nil, loadValueError(path, err)
	}
	return v, nil
}

func loadValueError(path string, err error) *LoadError {
	if tree.IsMalformed(err) {
		return &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err)}
}

func firstPos(err error) token.Pos {
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		return positions[0]
	}
	return token.NoPos
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
