package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	flagBuildOutput string
	flagBuildRun    bool
	flagBuildQuiet  bool
)

var buildCmd = &cobra.Command{
	Use:   "build [targets...]",
	Short: "Compile the manifest and write (optionally run) the Ninja build file",
	Long: "Runs the full six-stage pipeline over the manifest — YAML parsing,\n" +
		"template expansion, AST construction and rendering, IR compilation, and\n" +
		"Ninja synthesis — and writes the resulting text to --output (default\n" +
		"build.ninja). Pass --run to additionally invoke the `ninja` binary\n" +
		"against the synthesized file; this subprocess is the boundary\n" +
		"collaborator spec §1 names, not a core pipeline stage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveManifestPath(flagFile)
		result, err := compileManifest(path)
		if err != nil {
			renderDiagnosticErr(err)
			return errSilent
		}

		output := flagBuildOutput
		if output == "" {
			output = "build.ninja"
		}
		if err := os.WriteFile(output, []byte(result.Ninja), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", output)

		if !flagBuildRun {
			return nil
		}
		return runNinja(output, args)
	},
}

// errSilent signals that a diagnostic has already been rendered (by
// renderDiagnosticErr) and the caller should just exit non-zero without
// cobra printing the error again.
var errSilent = fmt.Errorf("compilation failed")

func init() {
	buildCmd.Flags().StringVarP(&flagBuildOutput, "output", "o", "", "path to write the Ninja build file (default build.ninja)")
	buildCmd.Flags().BoolVar(&flagBuildRun, "run", false, "invoke the ninja binary against the synthesized file")
	buildCmd.Flags().BoolVarP(&flagBuildQuiet, "quiet", "q", false, "skip the live progress view; stream ninja's own output directly")
}

// runNinja invokes the ninja binary against ninjaFile, forwarding targets.
// Unless --quiet is set it drives a bubbletea progress view
// (build_model.go); with --quiet it streams ninja's output directly, the
// way executor.go's bounded-subprocess pattern does. Whether a terminal is
// attached is not checked.
func runNinja(ninjaFile string, targets []string) error {
	argv := append([]string{"-f", ninjaFile}, targets...)
	if flagBuildQuiet {
		c := exec.Command("ninja", argv...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Stdin = os.Stdin
		return c.Run()
	}

	c := exec.Command("ninja", argv...)
	stdout, err := c.StdoutPipe()
	if err != nil {
		return err
	}
	c.Stderr = c.Stdout
	if err := c.Start(); err != nil {
		return fmt.Errorf("starting ninja: %w", err)
	}

	p := tea.NewProgram(newBuildModel())
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			p.Send(lineMsg(scanner.Text()))
		}
		p.Send(doneMsg{err: c.Wait()})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running progress view: %w", err)
	}
	if m, ok := final.(buildModel); ok && m.err != nil {
		return fmt.Errorf("ninja: %w", m.err)
	}
	return nil
}
