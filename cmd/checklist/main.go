package main

import (
	"context"
	"os"

	"github.com/idilsaglam/checklist/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], cli.Streams{}))
}
