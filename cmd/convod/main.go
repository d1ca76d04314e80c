package main

import (
	"flag"

	"go.uber.org/fx"

	"convo/internal/daemon"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides default ~/.convo)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{DataDir: *dataDirFlag}),
	)

	app.Run()
}
