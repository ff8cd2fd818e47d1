package main

import "github.com/Eduhs21/ClipBuilder/internal/cli"

func main() {
	cli.Main()
}
