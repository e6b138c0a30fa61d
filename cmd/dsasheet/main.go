package main

import "github.com/dsasheet/tui/internal/cli"

func main() {
	cli.Execute()
}
