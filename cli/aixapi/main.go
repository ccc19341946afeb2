package main

import (
	"os"

	servecmder "github.com/papercomputeco/aix/cmd/aix/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "aixapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .aix/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
