package main

import "github.com/facemed/face-med/cmd"

func main() {
	cmd.Execute()
}
