package main

import (
	"os"

	"github.com/rustyeddy/scanner/cmd/scanner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
