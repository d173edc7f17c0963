package bytecode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/cerr"
)

// LoadModules reads every *.json file directly under dir, each one a
// single compiled Move module's tables in the schema this package's
// types already decode via encoding/json reflection (SignatureToken is
// the only type here with custom marshaling, for its tagged-union wire
// shape). Files are read in name order so a caller passing a directory
// of predictably-named modules gets a deterministic module list.
func LoadModules(dir string) ([]*Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cerr.New(cerr.PhaseLoad, cerr.KindIO).
			Detailf("reading bytecode directory %s: %v", dir, err).Build()
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	modules := make([]*Module, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, cerr.New(cerr.PhaseLoad, cerr.KindIO).
				Detailf("reading %s: %v", path, err).Build()
		}
		var mod Module
		if err := json.Unmarshal(data, &mod); err != nil {
			return nil, cerr.New(cerr.PhaseLoad, cerr.KindIO).
				Detailf("decoding %s: %v", path, err).Build()
		}
		modules = append(modules, &mod)
	}

	if len(modules) == 0 {
		return nil, cerr.New(cerr.PhaseLoad, cerr.KindIO).
			Detailf("no .json module files found in %s", dir).Build()
	}
	return modules, nil
}

// ModuleByID returns the module in modules whose ID matches id, or nil.
func ModuleByID(modules []*Module, id ModuleID) *Module {
	for _, m := range modules {
		if m.ID == id {
			return m
		}
	}
	return nil
}
