package main

import "ollamabench/cmd"

func main() {
	cmd.Execute()
}
