package main

import (
	"os"

	"github.com/sqlite-burrito/burrito/pkg/cli"
)

var version = "0.2.0"

func main() {
	os.Exit(cli.Execute(version))
}
