package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leynos/netsuke/internal/tmpl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive console for the template engine's scope stack",
	Long: "Evaluates template expressions against a loaded manifest's global\n" +
		"scope, one line at a time — a debugging aid for the Template Engine\n" +
		"described in spec §4.7. If --file resolves to a compilable manifest its\n" +
		"rendered globals are loaded; otherwise the repl starts with an empty\n" +
		"global scope. Type :vars to list the current globals, :quit to exit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

func runRepl() error {
	env, err := newEnv(".")
	if err != nil {
		return err
	}

	globals := map[string]tmpl.Value{}
	path := resolveManifestPath(flagFile)
	if result, cerr := compileManifest(path); cerr == nil {
		globals = result.Manifest.Vars
		fmt.Printf("loaded globals from %s\n", path)
	}
	scope := tmpl.NewGlobalScope(globals)

	rl, err := readline.New("netsuke> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ":quit", ":q":
			return nil
		case ":vars":
			printGlobals(globals)
			continue
		}

		result, err := tmpl.Eval(line, scope, env)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(tmpl.Stringify(result.Value))
		if result.Impure {
			fmt.Println("(impure evaluation; not safe to cache)")
		}
	}
}

func printGlobals(globals map[string]tmpl.Value) {
	if len(globals) == 0 {
		fmt.Println("(no globals loaded)")
		return
	}
	for k, v := range globals {
		fmt.Printf("%s = %s\n", k, tmpl.Stringify(v))
	}
}
