// Command emberc compiles class-based script sources into a single script
// bundle. Subcommands are grounded in the teacher's cmd/ailang CLI (color-
// coded diagnostics, a `version` command carrying ldflags-injected build
// info) generalized from ailang's stdlib-flag dispatch to cobra's command
// tree, the cross-pack enrichment SPEC_FULL.md calls for (cobra appears
// directly in several retrieved example repos; the teacher only pulls it in
// transitively).
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emberscript/emberc/internal/bundle"
	"github.com/emberscript/emberc/internal/bundlecfg"
	"github.com/emberscript/emberc/internal/config"
	"github.com/emberscript/emberc/internal/diag"
	"github.com/emberscript/emberc/internal/discover"
	"github.com/emberscript/emberc/internal/orchestrator"
)

// Version info, set by ldflags during release builds.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:   "emberc",
		Short: "Compile script sources into a script bundle",
	}

	root.AddCommand(newCompileCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

func newCompileCmd() *cobra.Command {
	var pattern string
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "compile [root]",
		Short: "Discover, parse, and compile a source tree into a bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			cfg := config.Load()

			// A bundlecfg manifest, when given, takes precedence over the
			// env-var knobs config.Load reads: it lets a project commit its
			// predef path and module roots to source instead.
			if manifestPath != "" {
				m, err := bundlecfg.Load(manifestPath)
				if err != nil {
					return err
				}
				if m.Predef != "" {
					cfg.PredefBundlePath = m.Predef
				}
				if len(m.Roots) > 0 {
					root = m.Roots[0]
				}
				if m.Pattern != "" {
					pattern = m.Pattern
				}
			}
			if pattern == "" {
				pattern = discover.DefaultPattern
			}

			paths, err := discover.Files(root, pattern)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			if len(paths) == 0 {
				fmt.Fprintln(os.Stderr, yellow("warning:"), "no source files matched", pattern)
			}

			files := make([]orchestrator.SourceFile, 0, len(paths))
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("read %s: %w", p, err)
				}
				files = append(files, orchestrator.SourceFile{Path: p, Src: data})
			}

			c := orchestrator.New()
			if cfg.PredefBundlePath != "" {
				predefData, err := os.ReadFile(cfg.PredefBundlePath)
				if err != nil {
					return fmt.Errorf("read predef bundle %s: %w", cfg.PredefBundlePath, err)
				}
				c, err = orchestrator.NewWithPredef(predefData)
				if err != nil {
					return fmt.Errorf("load predef bundle %s: %w", cfg.PredefBundlePath, err)
				}
			}
			out := c.Compile(files)
			printDiagnostics(out.Reporter, cfg.DiagnosticsJSON)

			if out.Reporter.HasErrors() && cfg.StrictWarnings {
				return fmt.Errorf("compilation reported %d diagnostic(s)", len(out.Reporter.All()))
			}

			data, err := bundle.Encode(out.Pool, out.Tables)
			if err != nil {
				return fmt.Errorf("encode bundle: %w", err)
			}
			if err := os.WriteFile(cfg.OutputBundlePath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", cfg.OutputBundlePath, err)
			}
			fmt.Println(green("compiled"), len(files), "file(s) ->", cfg.OutputBundlePath,
				cyan("build="+out.Reporter.BuildID()))
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob pattern for source discovery (default **/*.script)")
	cmd.Flags().StringVar(&manifestPath, "config", "", "path to a bundlecfg YAML manifest (predef/roots/pattern)")
	return cmd
}

func newDumpCmd() *cobra.Command {
	var phase string
	cmd := &cobra.Command{
		Use:   "dump <bundle>",
		Short: "Decode a bundle and print its pool roots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			p, tables, err := bundle.Decode(data)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			for _, root := range p.Roots() {
				def := p.Definition(root)
				fmt.Printf("%s %s\n", cyan(root.Kind()), tables.Names.Get(def.Name))
			}
			_ = phase
			return nil
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "unused placeholder for future phase-scoped dumps")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("emberc %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
}

func printDiagnostics(reporter *diag.Reporter, asJSON bool) {
	for _, r := range reporter.All() {
		if asJSON {
			text, err := r.ToJSON(true)
			if err != nil {
				fmt.Fprintln(os.Stderr, red("Error:"), err)
				continue
			}
			fmt.Println(text)
			continue
		}
		loc := ""
		if r.Span != nil {
			loc = fmt.Sprintf("%s:%d:%d: ", r.Span.File, r.Span.StartLine, r.Span.StartCol)
		}
		fmt.Fprintf(os.Stderr, "%s%s %s: %s\n", loc, red(string(r.Phase)), yellow(string(r.Code)), r.Message)
	}
}
