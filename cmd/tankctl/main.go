package main

import "watertank/cmd/tankctl/command"

func main() {
	command.Execute()
}
