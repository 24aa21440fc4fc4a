package main

import (
	"fmt"
	"os"
	"strings"
)

var version = "dev"

func main() {
	cmd, args := "load", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "load":
		err = cmdLoad(args)
	case "serve":
		err = cmdServe(args)
	case "sources":
		err = cmdSources(args)
	case "version":
		fmt.Println(version)
	case "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pandemic %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: pandemic [command] [-config pandemic.yaml]

Commands:
  load                          Read the SARS and COVID sources into the database (default)
  serve                         Start the HTTP API and MCP server, with scheduled reloads
  sources [list]                List configured sources and their last check/read
  sources set <id> <location>   Point a source at another path or URL
  sources check                 Probe every source location
  version                       Print the version
`)
}
