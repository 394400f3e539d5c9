package main

import (
	"os"

	"github.com/jobkit/jobtailor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
