package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mylog "clinic-gateway/internal/log"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// .env é opcional; variáveis já exportadas têm precedência
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	mylog.InitLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.WithError(err).Error("gateway failed")
		return 1
	}
	return 0
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "YAML config file (env vars override it)",
	Sources: cli.EnvVars("GATEWAY_CONFIG"),
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "cache, circuit breaker and location gateway for the clinic API",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			serveCommand(),
			locateCommand(),
			statsCommand(),
			cacheCommand(),
		},
		DefaultCommand: "serve",
	}
}
