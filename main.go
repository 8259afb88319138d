package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/pushcore/cmd"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, version, os.Args[1:])
	stop()
	os.Exit(code)
}
