package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()
	rootLogger, err := shared.NewLogger(conf)
	if err != nil {
		log.Println(err)
		return 1
	}
	defer func() { _ = rootLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := newCommandLine(conf, rootLogger.Named("ADMIN"))
	defer cli.close()

	if err = cli.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}
