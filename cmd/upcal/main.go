package main

import "upcal/cmd/upcal/cmd"

func main() {
	cmd.Execute()
}
