package main

import (
	"os"

	aixcmder "github.com/papercomputeco/aix/cmd/aix"
)

func main() {
	cmd := aixcmder.NewAixCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
