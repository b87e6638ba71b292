// Package main is the entry point of the offline knowledge-base ingestion.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/mycvconnect/mhire/cmd/mhire-ingest/app"
)

func main() {
	app.NewApp().Run()
}
