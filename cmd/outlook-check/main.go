package main

import "naturelife-cert/internal/cli"

func main() {
	cli.Main()
}
