package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/voluzi/waitsampler/cmd/waitsampler/cmd"
)

func main() {
	cmd.Execute()
}
