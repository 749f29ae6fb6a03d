package main

import "restruct/cmd"

func main() {
	cmd.Execute()
}
