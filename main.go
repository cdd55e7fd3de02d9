package main

import "pushsync/cmd"

func main() {
	cmd.Execute()
}
