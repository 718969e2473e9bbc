package main

import "github.com/koman-maciej/insurance/cmd/policygate/cmd"

func main() {
	cmd.Execute()
}
