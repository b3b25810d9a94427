package main

import (
	"os"

	"github.com/gnoverse/pplint/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
