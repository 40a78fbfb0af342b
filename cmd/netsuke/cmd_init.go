package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var flagInitForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a new Netsukefile with a first target",
	Long: "An interactive wizard that scaffolds a starter Netsukefile (name,\n" +
		"version, and a first target), generalizing the teacher's\n" +
		"cmd_config_init.go prompt-for-values idiom from devshell config\n" +
		"scaffolding to manifest scaffolding.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite an existing Netsukefile")
}

func runInit() error {
	path := resolveManifestPath(flagFile)
	if !flagInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	var (
		version      = "1.0.0"
		targetName   = "out.txt"
		targetOutput = "echo hello > out.txt"
		addDefault   = true
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("netsuke_version").
				Description("the manifest's declared major.minor.patch version").
				Value(&version),
			huh.NewInput().
				Title("first target name").
				Value(&targetName),
			huh.NewInput().
				Title("first target command").
				Value(&targetOutput),
			huh.NewConfirm().
				Title("add it to defaults?").
				Value(&addDefault),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("running init wizard: %w", err)
	}

	manifest := renderInitManifest(version, targetName, targetOutput, addDefault)
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}

func renderInitManifest(version, targetName, targetCommand string, addDefault bool) string {
	s := fmt.Sprintf("netsuke_version: %q\n\ntargets:\n  - name: %q\n    command: %q\n",
		version, targetName, targetCommand)
	if addDefault {
		s += fmt.Sprintf("\ndefaults:\n  - %q\n", targetName)
	}
	return s
}
