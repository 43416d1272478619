package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"clinic-gateway/internal/app"
	"clinic-gateway/internal/config"
	locationapp "clinic-gateway/location/application"
	"clinic-gateway/location/domain"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func locateCommand() *cli.Command {
	return &cli.Command{
		Name:      "locate",
		Usage:     "run the location waterfall once and print every attempt",
		UsageText: "gateway locate [--subject S] [--ip IP] [--lat LAT --lon LON --accuracy M]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "client key used for the last known fix"},
			&cli.StringFlag{Name: "ip", Usage: "client IP for the ip step"},
			&cli.FloatFlag{Name: "lat", Usage: "device reading latitude"},
			&cli.FloatFlag{Name: "lon", Usage: "device reading longitude"},
			&cli.FloatFlag{Name: "accuracy", Usage: "device reading accuracy in meters", Value: -1},
			&cli.StringFlag{Name: "method", Usage: "device reading method (high_accuracy or network)", Value: string(domain.MethodHighAccuracy)},
		},
		Action: locateAction,
	}
}

func locateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	q := domain.Query{Subject: cmd.String("subject"), ClientIP: cmd.String("ip")}
	if cmd.IsSet("lat") && cmd.IsSet("lon") && cmd.Float("accuracy") >= 0 {
		rd := domain.Reading{
			Method:    domain.Method(cmd.String("method")),
			Lat:       cmd.Float("lat"),
			Lon:       cmd.Float("lon"),
			AccuracyM: cmd.Float("accuracy"),
			At:        time.Now(),
		}
		if err := rd.Validate(); err != nil {
			return fmt.Errorf("invalid reading: %w", err)
		}
		q.Readings = append(q.Readings, rd)
	}

	res, err := a.Resolver.Resolve(ctx, q)
	printAttempts(cmd.Root().Writer, res.Attempts)
	if err != nil {
		return err
	}
	printFix(cmd.Root().Writer, res.Fix, a.Gateway.Sites, cfg.Location.SlackM)
	return nil
}

func printAttempts(w io.Writer, attempts []locationapp.Attempt) {
	for _, at := range attempts {
		mark := "-"
		if at.Accepted {
			mark = "+"
		}
		line := fmt.Sprintf("%s %-14s %8s", mark, at.Method, at.Duration.Round(time.Millisecond))
		if at.AccuracyM > 0 {
			line += "  ±" + meters(at.AccuracyM)
		}
		if at.Error != "" {
			line += "  " + at.Error
		}
		fmt.Fprintln(w, line)
	}
}

func printFix(w io.Writer, fix domain.Fix, sites []domain.Site, slackM float64) {
	fmt.Fprintf(w, "\n%.6f, %.6f  ±%s  via %s (%s)\n",
		fix.Lat, fix.Lon, meters(fix.AccuracyM), fix.Method, humanize.Time(fix.At))

	if gf, ok := locationapp.Check(fix, sites, slackM); ok {
		where := "outside"
		if gf.Inside {
			where = "inside"
		}
		fmt.Fprintf(w, "%s %s (%s away)\n", where, gf.Site, meters(gf.DistanceM))
	}
}

// meters formata 850 como "850 m" e 12400 como "12.4 km".
func meters(v float64) string {
	return humanize.SIWithDigits(v, 1, "m")
}
