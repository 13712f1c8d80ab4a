package main

import "github.com/KaramelBytes/sameday-cli/cmd"

func main() {
	cmd.Execute()
}
