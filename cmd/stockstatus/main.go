// Package main is the entry point for the stockstatus CLI.
package main

import "github.com/basecamp/stockstatus/internal/cli"

func main() {
	cli.Execute()
}
