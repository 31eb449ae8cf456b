// Command symcheck runs the module symbol table and evaluation engine
// (spec.md §5 "Parse → Collect → EvaluateAll") against a JSON-encoded
// syntax tree and reports the diagnostics it produces, or prints the
// names in the module's export set as a JSON array.
//
// symcheck has no parser of its own — Parser is an external collaborator
// (spec.md §1) — so its input is always a tree some other frontend already
// produced and serialized with internal/astjson's encoding.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunholo/symscope/internal/analysis"
	"github.com/sunholo/symscope/internal/astjson"
	"github.com/sunholo/symscope/internal/collab"
	"github.com/sunholo/symscope/internal/hostconfig"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var (
	hostSpecPath string
	asLibrary    bool
)

func main() {
	root := &cobra.Command{
		Use:   "symcheck",
		Short: "Static type inference over a module's syntax tree",
	}
	root.PersistentFlags().StringVar(&hostSpecPath, "host", "", "path to a YAML host spec (defaults to Python 3.12 / linux)")
	root.PersistentFlags().BoolVar(&asLibrary, "library", false, "treat the module as library-provided (skip annotated bodies, clear function locals)")

	root.AddCommand(newCheckCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <module.json>",
		Short: "Analyze a module and print its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, sink, err := runAnalysis(args[0])
			if err != nil {
				return err
			}
			entries := sink.All()
			if len(entries) == 0 {
				fmt.Println(green("ok"), "— no diagnostics,", result.Module.Exports.Len(), "symbols exported")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s %s %s: %s\n", yellow(e.Source), red(e.Severity.String()), bold(e.Code), e.Message)
			}
			return fmt.Errorf("%d diagnostic(s)", len(entries))
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <module.json>",
		Short: "Analyze a module and print its exported names as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, _, err := runAnalysis(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(exportedSymbolNames(result))
		},
	}
}

func runAnalysis(path string) (*analysis.Result, *collab.CollectingSink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	mod, err := astjson.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	spec := hostconfig.Default()
	if hostSpecPath != "" {
		spec, err = hostconfig.Load(hostSpecPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading host spec: %w", err)
		}
	}

	sink := collab.NewCollectingSink()
	deps := analysis.Dependencies{
		Resolver:        collab.NewMemoryResolver(),
		Stubs:           collab.NewMemoryStubProvider(),
		Diagnostics:     sink,
		Host:            spec.HostInfo(),
		KeepDeprecated:  spec.Toggles.KeepDeprecated,
		IsLibraryModule: asLibrary,
	}
	return analysis.AnalyzeModule(mod, path, deps), sink, nil
}

func exportedSymbolNames(r *analysis.Result) []string {
	return r.Module.Exports.Names()
}
