package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"ct2mcnp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Root.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
