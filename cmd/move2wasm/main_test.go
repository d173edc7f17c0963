package main

import (
	"testing"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/stretchr/testify/require"
)

func TestResolveTargetDefaultsToSoleModule(t *testing.T) {
	mod := &bytecode.Module{ID: bytecode.ModuleID{1}}
	got, err := resolveTarget([]*bytecode.Module{mod}, "")
	require.NoError(t, err)
	require.Same(t, mod, got)
}

func TestResolveTargetRequiresNameWhenAmbiguous(t *testing.T) {
	a := &bytecode.Module{ID: bytecode.ModuleID{1}}
	b := &bytecode.Module{ID: bytecode.ModuleID{2}}
	_, err := resolveTarget([]*bytecode.Module{a, b}, "")
	require.Error(t, err)
}

func TestResolveTargetMatchesByHexID(t *testing.T) {
	a := &bytecode.Module{ID: bytecode.ModuleID{1}}
	b := &bytecode.Module{ID: bytecode.ModuleID{2}}
	modules := []*bytecode.Module{a, b}

	got, err := resolveTarget(modules, "0200000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	require.Same(t, b, got)
}

func TestResolveTargetErrorsOnUnknownID(t *testing.T) {
	a := &bytecode.Module{ID: bytecode.ModuleID{1}}
	_, err := resolveTarget([]*bytecode.Module{a}, "ff")
	require.Error(t, err)
}
