// biotree - Biolink model hierarchies for Go.
//
// biotree fetches a Biolink model schema, builds its category, predicate
// and aspect trees, classifies categories into major branches and serves
// the results on the command line, over HTTP and over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/biotree-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
