// Package main is the entry point for the coursesched CLI.
package main

import (
	"os"

	"github.com/jmylchreest/coursesched/cmd/coursesched/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
