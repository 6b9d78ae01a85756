package main

import "net-watchdog/cmd"

func main() {
	cmd.Execute()
}
