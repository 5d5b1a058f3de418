package main

import "idlink/linker/cmd"

func main() {
	cmd.Execute()
}
