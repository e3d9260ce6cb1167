package main

import "medicopilot/cmd"

func main() {
	cmd.Execute()
}
