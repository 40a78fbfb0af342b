package main

import (
	"github.com/spf13/cobra"
)

var (
	flagFile            string
	flagJSON            bool
	flagCacheDir        string
	flagFetchMaxBytes   int64
	flagCommandMaxBytes int64
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Compile a Netsukefile manifest into a Ninja build file",
	Long: "Netsuke compiles a declarative YAML manifest (a Netsukefile) into a\n" +
		"static Ninja build file through a six-stage pipeline: YAML parsing,\n" +
		"template expansion, AST construction and rendering, IR compilation,\n" +
		"and Ninja synthesis.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "path to the Netsukefile (default: ./Netsukefile)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "render diagnostics as machine-readable JSON (spec §6)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "fetch cache directory (default: under the config directory)")
	rootCmd.PersistentFlags().Int64Var(&flagFetchMaxBytes, "fetch-max-bytes", 0, "override the fetch() response byte budget (default 8 MiB)")
	rootCmd.PersistentFlags().Int64Var(&flagCommandMaxBytes, "command-max-bytes", 0, "override the shell() captured-stdout byte budget (default 1 MiB)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
}
