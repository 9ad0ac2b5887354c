package main

import (
	"log"

	"github.com/ventaflow/ventabot/core/cmd"
)

func main() {
	if err := cmd.Run(cmd.Options{DefaultConfigPath: "config.yaml"}); err != nil {
		log.Fatalf("ventabot: %v", err)
	}
}
