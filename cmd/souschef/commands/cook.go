package commands

import (
	"github.com/hearthware/souschef/cmd/souschef/commands/cook"
)

func init() {
	rootCmd.AddCommand(cook.Command(ResolveContext))
}
