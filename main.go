package main

import (
	"os"

	"github.com/pjtatlow/terminus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
