package main

import "github.com/gmcoin/mintworker/internal/cli"

func main() {
	cli.Execute()
}
