package main

import (
	"github.com/lmdict/lmdict/cmd"
)

func main() {
	cmd.Execute()
}
