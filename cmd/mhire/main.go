// Package main is the entry point for the mhire career assistant service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/mycvconnect/mhire/cmd/mhire/app"
)

func main() {
	app.NewApp().Run()
}
