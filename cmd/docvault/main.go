package main

import "github.com/eshaffer321/docvault-go/cmd/docvault/cmd"

func main() {
	cmd.Execute()
}
