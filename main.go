package main

import (
	"os"

	"github.com/tawan/askai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
