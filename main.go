package main

import "github.com/nextlevelbuilder/botlink/cmd"

func main() {
	cmd.Execute()
}
