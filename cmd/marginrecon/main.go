package main

import (
	"os"

	"github.com/wonny/marginrecon/cmd/marginrecon/commands"
)

// main is the entry point for the marginrecon CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/marginrecon [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
