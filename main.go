package main

import "github.com/mahtabnejad90/calabash/pkg/cli"

func main() {
	cli.Execute()
}
