// Command sqllint fails when a query constant lacks the "--sql <uuid>"
// marker that infra.SQLRunner requires, or reuses another query's marker.
//
//	go run ./internal/tools/sqllint ./internal/sqlinline
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	violations, err := Lint(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "sqllint: invalid SQL markers")
	for _, v := range violations {
		fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.File, v.Line, v.Message, v.Name)
	}
	os.Exit(1)
}
