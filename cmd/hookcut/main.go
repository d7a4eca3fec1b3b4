package main

import "github.com/forPelevin/hookcut/internal/cli"

func main() {
	cli.Main()
}
