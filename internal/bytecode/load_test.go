package bytecode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeModuleFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadModulesDecodesEveryJSONFile(t *testing.T) {
	dir := t.TempDir()
	writeModuleFile(t, dir, "a.json", `{
		"ID": [1],
		"FunctionHandles": [{"Index": 0, "Name": "answer", "Returns": [{"kind": "U64"}]}],
		"Functions": [{"HandleIndex": 0, "Attributes": {"IsEntry": true}, "Code": [
			{"Op": "LdU64", "ImmU64": 42}, {"Op": "Ret"}
		]}],
		"InitFunctionIndex": -1
	}`)
	writeModuleFile(t, dir, "not_a_module.txt", "ignore me")

	modules, err := LoadModules(dir)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Equal(t, "answer", modules[0].FunctionHandles[0].Name)
	require.Equal(t, SigU64, modules[0].FunctionHandles[0].Returns[0].Kind)
}

func TestLoadModulesRejectsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadModules(dir)
	require.Error(t, err)
}

func TestLoadModulesRejectsMissingDirectory(t *testing.T) {
	_, err := LoadModules(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestModuleByIDFindsMatchingModule(t *testing.T) {
	a := &Module{ID: ModuleID{1}}
	b := &Module{ID: ModuleID{2}}
	require.Same(t, b, ModuleByID([]*Module{a, b}, ModuleID{2}))
	require.Nil(t, ModuleByID([]*Module{a, b}, ModuleID{3}))
}
