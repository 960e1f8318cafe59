package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/justyntemme/aladinkr/internal/api"
)

const version = "0.1.0"

func main() {
	api.Version = version
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
