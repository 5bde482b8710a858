//go:build linux

package main

import (
	"os"

	"github.com/fonsecagoncalo/tincan/cmd"
	"github.com/fonsecagoncalo/tincan/container/step"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == step.ResumeMarkerArg {
		step.Resume()
		return
	}
	cmd.Execute()
}
