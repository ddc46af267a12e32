package main

import "squeeze/cmd"

func main() {
	cmd.Execute()
}
