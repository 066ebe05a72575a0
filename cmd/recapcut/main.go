package main

import "github.com/forPelevin/recapcut/internal/cli"

func main() {
	cli.Main()
}
