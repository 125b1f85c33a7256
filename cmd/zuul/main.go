/*
This command provides an executable version of zuul with the built-in
filters and the upstream filter.

For the list of command line options, run:

	zuul -help

The filter chain is defined in YAML, either in a file:

	zuul -filters-file chain.yaml

or inline:

	zuul -filters 'endpoint: {name: inlineContent, args: ["Hello, world!"]}'

For details about the filter chain and the request lifecycle, see the
documentation of the root zuul package.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/edgezuul/zuul"
	"github.com/edgezuul/zuul/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	if err := zuul.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
