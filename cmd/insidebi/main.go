package main

import (
	"os"

	"github.com/seanankenbruck/insidebi-ai/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
