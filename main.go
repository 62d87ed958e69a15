package main

import "github.com/RyanBlaney/dubsync/cmd"

func main() {
	cmd.Execute()
}
