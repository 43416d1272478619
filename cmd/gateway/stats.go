package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
)

var urlFlag = &cli.StringFlag{
	Name:    "url",
	Usage:   "base URL of a running gateway",
	Value:   "http://localhost:8080",
	Sources: cli.EnvVars("GATEWAY_URL"),
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "print cache, breaker and rate limit counters of a running gateway",
		Flags: []cli.Flag{urlFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			body, err := call(ctx, http.MethodGet, cmd.String("url"), "/debug/stats")
			if err != nil {
				return err
			}
			printStats(cmd.Root().Writer, gjson.ParseBytes(body))
			return nil
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "cache maintenance on a running gateway",
		Commands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "drop cached entries whose key starts with --prefix",
				Flags: []cli.Flag{
					urlFlag,
					&cli.StringFlag{Name: "prefix", Usage: "key prefix, e.g. api/schedules", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := "/cache?prefix=" + url.QueryEscape(cmd.String("prefix"))
					body, err := call(ctx, http.MethodDelete, cmd.String("url"), path)
					if err != nil {
						return err
					}
					n := gjson.GetBytes(body, "removed").Int()
					fmt.Fprintf(cmd.Root().Writer, "removed %s entries\n", humanize.Comma(n))
					return nil
				},
			},
		},
	}
}

func call(ctx context.Context, method, base, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, gjson.GetBytes(body, "error").String())
	}
	return body, nil
}

func printStats(w io.Writer, st gjson.Result) {
	c := st.Get("cache")
	fmt.Fprintf(w, "cache     %s entries, %s\n", humanize.Comma(c.Get("entries").Int()), humanize.Bytes(uint64(c.Get("bytes").Int())))
	fmt.Fprintf(w, "          hits memory=%s redis=%s  misses=%s  stale=%s\n",
		humanize.Comma(c.Get("memory_hits").Int()),
		humanize.Comma(c.Get("redis_hits").Int()),
		humanize.Comma(c.Get("misses").Int()),
		humanize.Comma(c.Get("stale_served").Int()))
	fmt.Fprintf(w, "          fetches=%s coalesced=%s errors=%s pending=%d\n",
		humanize.Comma(c.Get("fetches").Int()),
		humanize.Comma(c.Get("coalesced").Int()),
		humanize.Comma(c.Get("fetch_errors").Int()),
		len(st.Get("pending").Array()))

	o := st.Get("outbound")
	fmt.Fprintf(w, "outbound  breaker=%s  failures=%d in a row  window=%d\n",
		o.Get("state").String(), o.Get("counts.consecutive_failures").Int(), o.Get("window_usage").Int())

	if in := st.Get("inbound"); in.Exists() {
		fmt.Fprintf(w, "inbound   allowed=%s denied=%s (rate=%s concurrency=%s)\n",
			humanize.Comma(in.Get("total.allowed").Int()),
			humanize.Comma(in.Get("total.denied").Int()),
			humanize.Comma(in.Get("denied_by_reason.rate").Int()),
			humanize.Comma(in.Get("denied_by_reason.concurrency").Int()))
	}
	if cc := st.Get("concurrency"); cc.Exists() {
		fmt.Fprintf(w, "          in flight %d/%d\n", cc.Get("in_use").Int(), cc.Get("max").Int())
	}
}
