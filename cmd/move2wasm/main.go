// Command move2wasm compiles a directory of already-parsed Move bytecode
// modules (§3.3's JSON schema) into a single Stylus-compatible WASM
// module (§4.9), writing the encoded bytes to an output file.
package main

import (
	"fmt"
	"os"

	"github.com/rather-labs/move-bytecode-to-wasm/internal/assemble"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/bytecode"
	"github.com/rather-labs/move-bytecode-to-wasm/internal/clog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	inputDir   string
	targetName string
	outputPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "move2wasm",
		Short: "move2wasm compiles a parsed Move bytecode package into a Stylus-ABI WASM module",
		RunE:  runCompile,
	}

	rootCmd.Flags().StringVar(&inputDir, "input", "", "directory of *.json bytecode module files (required)")
	rootCmd.Flags().StringVar(&targetName, "target", "", "hex-encoded id of the module to compile (default: the package's only module)")
	rootCmd.Flags().StringVar(&outputPath, "output", "out.wasm", "path to write the encoded WASM module to")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log compilation progress")
	_ = rootCmd.MarkFlagRequired("input")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck
		clog.SetLogger(logger)
	}

	modules, err := bytecode.LoadModules(inputDir)
	if err != nil {
		return fmt.Errorf("loading bytecode package: %w", err)
	}

	target, err := resolveTarget(modules, targetName)
	if err != nil {
		return err
	}

	clog.L().Info("compiling module",
		zap.String("target", targetName),
		zap.Int("module_count", len(modules)))

	out, err := assemble.Assemble(modules, target)
	if err != nil {
		return fmt.Errorf("assembling wasm module: %w", err)
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	fmt.Printf("wrote %s (%d bytes)\n", outputPath, len(out))
	return nil
}

// resolveTarget picks the module to compile: the one whose ID hex-encodes
// to --target, or the package's only module when --target is omitted and
// there is exactly one candidate.
func resolveTarget(modules []*bytecode.Module, name string) (*bytecode.Module, error) {
	if name == "" {
		if len(modules) == 1 {
			return modules[0], nil
		}
		return nil, fmt.Errorf("--target is required when the input directory holds more than one module")
	}
	for _, m := range modules {
		if fmt.Sprintf("%x", m.ID) == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no module with id %q found in %s", name, inputDir)
}
