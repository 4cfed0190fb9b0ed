package main

import (
	"example.com/meetease/cmd"
	"example.com/meetease/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
