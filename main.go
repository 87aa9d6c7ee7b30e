// Lexigraph - lexical graph indexer and extractor for segmented documents.
//
// Lexigraph turns document paragraphs, tables and outlines into a graph of
// n-gram symbols and answers free-text queries by ranking the elements that
// share the most specific symbols with the query.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/lexigraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
