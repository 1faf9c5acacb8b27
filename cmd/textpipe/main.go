// Command textpipe polls an SMS gateway inbox, sends messages and serves a
// small HTTP API over the same gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "textpipe:", err)
		os.Exit(1)
	}
}
