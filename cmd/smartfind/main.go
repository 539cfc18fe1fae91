package main

import "smartfind/internal/cli"

func main() {
	cli.Execute()
}
