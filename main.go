package main

import "citizen-card-cli/cmd"

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.Version = version
	if commit != "none" && commit != "" {
		cmd.Version += " (" + commit + ")"
	}
	cmd.Execute()
}
