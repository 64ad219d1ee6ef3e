package main

import "github.com/username/portafolio/backend/cmd"

func main() {
	cmd.Execute()
}
