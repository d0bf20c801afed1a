package main

import "repoatlas/cmd"

func main() {
	cmd.Execute()
}
