package main

import (
	"os"

	"github.com/aine1100/pixbay-backend/cmd/pixbay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
