// Command finreview-cli runs the ingestion pipeline and the report
// workflow from the command line, one subcommand per operation.
package main

import (
	"fmt"
	"os"
)

const usage = `finreview-cli - A股财报点评工具

Usage:
  finreview-cli <command> [flags]

Commands:
  chunk          Split a markdown filing into classified chunks (JSON)
  ingest         Chunk, embed, and store a markdown filing
  ratios         Fetch statements and compute the financial ratio report
  generate       Run the report workflow and write the markdown review
  delete-report  Remove a report's chunks from the vector store

Run 'finreview-cli <command> -h' for command flags.
`

// Exit codes: 0 success, 1 operation error, 2 usage error.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "chunk":
		err = runChunk(os.Args[2:])
	case "ingest":
		err = runIngest(os.Args[2:])
	case "ratios":
		err = runRatios(os.Args[2:])
	case "generate":
		err = runGenerate(os.Args[2:])
	case "delete-report":
		err = runDeleteReport(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if _, ok := err.(usageError); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// usageError marks bad invocations so main can exit 2.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}
