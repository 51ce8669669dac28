package main

import "github.com/audiolibrelab/wavrec/cmd"

func main() {
	cmd.Execute()
}
