// Main package for the Vitals service and command line tooling
/*
Vitals

Usage:
  vitals [command]

Available Commands:
  check       Ping a running service
  conf:dump   Dump the effective config to a file
  help        Help about any command
  new         Create a new application
  serve       Run the vitals service
  version     Version information

Flags:
  -h, --help          help for vitals
      --path string   path to config files (default "./config")

Use "vitals [command] --help" for more information about a command.
*/

package main

import "github.com/vitals-run/vitals/serv"

func main() {
	serv.Cmd()
}
