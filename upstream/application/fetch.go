package application

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// Endpoints da API da clínica usados pelo painel.
const (
	AttendancePath = "/api/attendance"
	SchedulesPath  = "/api/schedules"
	DashboardPath  = "/api/dashboard/stats"
)

const dateLayout = "2006-01-02"

// FetchAttendance busca as marcações de ponto do dia.
func (c *Client) FetchAttendance(ctx context.Context, scope string, day time.Time, header http.Header) (Response, error) {
	return c.Get(ctx, Request{
		Path:   AttendancePath,
		Query:  url.Values{"date": {day.Format(dateLayout)}},
		Header: header,
		Scope:  scope,
	})
}

// FetchSchedule busca a escala da semana que contém day (semana começa na segunda).
func (c *Client) FetchSchedule(ctx context.Context, scope string, day time.Time, header http.Header) (Response, error) {
	return c.Get(ctx, Request{
		Path:   SchedulesPath,
		Query:  url.Values{"week_start": {WeekStart(day).Format(dateLayout)}},
		Header: header,
		Scope:  scope,
	})
}

func (c *Client) FetchDashboard(ctx context.Context, scope string, header http.Header) (Response, error) {
	return c.Get(ctx, Request{Path: DashboardPath, Header: header, Scope: scope})
}

// Prefetch aquece presença, escala e painel em paralelo.
func (c *Client) Prefetch(ctx context.Context, scope string, now time.Time, header http.Header) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.FetchAttendance(gctx, scope, now, header)
		return err
	})
	g.Go(func() error {
		_, err := c.FetchSchedule(gctx, scope, now, header)
		return err
	})
	g.Go(func() error {
		_, err := c.FetchDashboard(gctx, scope, header)
		return err
	})
	return g.Wait()
}

// WeekStart devolve a segunda-feira 00:00 da semana de t (no fuso de t).
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
