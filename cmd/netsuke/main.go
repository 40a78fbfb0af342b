// Command netsuke compiles a Netsukefile manifest into a Ninja build file
// and, optionally, hands it to the `ninja` binary to execute (spec §1: the
// subprocess runner is a boundary collaborator, not a core responsibility).
package main

import (
	"os"

	"github.com/leynos/netsuke/pkg/lib"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if err == errSilent {
			os.Exit(1)
		}
		lib.Exit(err)
	}
}
