package main

import "github.com/nextlevelbuilder/paywallbot/cmd"

func main() {
	cmd.Execute()
}
