package main

import (
	"os"

	"github.com/Ananth-NQI/intake-backend/internal/cli"
)

var version = "1.0.0"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
