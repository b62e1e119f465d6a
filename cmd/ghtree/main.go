// Command ghtree explores GitHub organizations, repositories and their
// workflows, runs, runners, branches, pull requests and issues as a tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
