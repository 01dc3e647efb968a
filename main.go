package main

import "github.com/sander-remitly/packer/cmd"

func main() {
	cmd.Execute()
}
