package main

import "devpi-cleaner/internal/cli"

func main() {
	cli.Execute()
}
