package main

import (
	"os"

	"github.com/mcpli/mcpli/internal/cli/commands"
)

func main() {
	os.Exit(commands.Execute())
}
