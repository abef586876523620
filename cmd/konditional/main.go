// Command konditional is the operator CLI: it validates, normalizes,
// and patches snapshot documents for the application namespace, and
// provides bucketing and key-generation utilities.
package main

import (
	"os"

	"github.com/TimurManjosov/konditional/cmd/konditional/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
