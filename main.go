// The main package for the intelwatch executable.
package main

import (
	"github.com/jbouvier/intelwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
