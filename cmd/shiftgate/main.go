package main

import "github.com/shiftgate/shiftgate/cmd/shiftgate/cmd"

func main() {
	cmd.Execute()
}
