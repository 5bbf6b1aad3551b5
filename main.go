package main

import "github.com/lepinkainen/kitaplik/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
