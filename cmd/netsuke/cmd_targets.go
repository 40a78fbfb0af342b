package main

import (
	"fmt"
	"sort"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/leynos/netsuke/internal/compiler"
)

var flagTargetsPick bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List every edge output in the compiled build graph",
	Long: "Compiles the manifest and lists every BuildEdge output name,\n" +
		"deduplicated and sorted lexicographically. With --pick, opens\n" +
		"an interactive fuzzy finder over the list and prints the chosen name.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveManifestPath(flagFile)
		result, err := compileManifest(path)
		if err != nil {
			renderDiagnosticErr(err)
			return errSilent
		}

		names := collectOutputs(result)
		if !flagTargetsPick {
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}

		if len(names) == 0 {
			fmt.Println("no targets found")
			return nil
		}
		idx, err := fuzzyfinder.Find(names, func(i int) string { return names[i] })
		if err != nil {
			if err == fuzzyfinder.ErrAbort {
				return nil
			}
			return fmt.Errorf("fuzzyfinder: %w", err)
		}
		fmt.Println(names[idx])
		return nil
	},
}

// collectOutputs returns every output of every edge, deduplicated and
// sorted, mirroring cmd_list.go's collectLeaves/printLeaves walk of the
// teacher's DSL tree, generalized to ir.BuildGraph edges.
func collectOutputs(result *compiler.Result) []string {
	seen := make(map[string]bool)
	var names []string
	for _, edge := range result.Graph.Edges {
		for _, out := range edge.Outputs {
			if !seen[out] {
				seen[out] = true
				names = append(names, out)
			}
		}
	}
	sort.Strings(names)
	return names
}

func init() {
	targetsCmd.Flags().BoolVar(&flagTargetsPick, "pick", false, "open an interactive fuzzy picker over the compiled outputs")
}
