package main

import (
	"os"

	"github.com/shunichi-ikebuchi/bookkeeper/cmd/bookkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
