package main

import "github.com/seriesdl/seriesdl/cmd"

func main() {
	cmd.Execute()
}
