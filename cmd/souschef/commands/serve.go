package commands

import (
	"github.com/hearthware/souschef/cmd/souschef/commands/serve"
)

func init() {
	rootCmd.AddCommand(serve.Command())
}
