// golemmcp - MCP host integration layer
// Inspired by and grounded on devopsclaw: https://github.com/freitascorp/devopsclaw
// License: MIT
//
// Copyright (c) 2026 golemmcp contributors
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
