package main

import "github.com/rovshanmuradov/solana-sim/internal/cli"

func main() {
	cli.Execute()
}
