package main

import (
	"os"

	"github.com/wonny/aegis-regime/cmd/regime/commands"
)

// main is the entry point for the regime CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/regime [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
