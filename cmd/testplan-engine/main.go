// Package main provides the entry point for the testplan-engine CLI.
package main

import "testops/testplan-engine/internal/cli"

func main() {
	cli.Execute()
}
