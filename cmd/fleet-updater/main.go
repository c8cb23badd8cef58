package main

import "github.com/oshokin/fleet-updater/cmd/fleet-updater/cmd"

func main() {
	cmd.Execute()
}
