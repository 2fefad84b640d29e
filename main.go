package main

import "github.com/KaramelBytes/haruspex-cli/cmd"

func main() {
	cmd.Execute()
}
