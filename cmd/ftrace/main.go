package main

import (
	"os"

	"github.com/mingerfan/ftrace-dev/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
