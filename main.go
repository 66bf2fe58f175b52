package main

import "github.com/gaurav-prasanna/partspipe/cmd"

func main() {
	cmd.Execute()
}
