package main

import (
	"github.com/BioHazard786/medzoom/cmd"
	"github.com/BioHazard786/medzoom/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
