package infra

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"clinic-gateway/location/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGPSD aceita uma conexão, espera o ?WATCH e responde com lines.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		cmd, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || !strings.HasPrefix(cmd, "?WATCH=") {
			return
		}
		for _, l := range lines {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestGPSD_FirstUsableTPV(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`not json`,
		`{"class":"TPV","mode":2,"lat":-23.5,"lon":-46.6}`,
		`{"class":"TPV","mode":3,"time":"2026-03-02T12:00:00.000Z","lat":-23.56,"lon":-46.65,"epx":4.5,"epy":7.25}`,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fix, err := NewGPSD(addr).Locate(ctx, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, domain.MethodGPSD, fix.Method)
	assert.Equal(t, -23.56, fix.Lat)
	assert.Equal(t, 7.25, fix.AccuracyM)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), fix.At.UTC())
}

func TestGPSD_PrefersEph(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":3,"lat":1,"lon":2,"eph":3.1,"epx":9,"epy":9}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fix, err := NewGPSD(addr).Locate(ctx, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, 3.1, fix.AccuracyM)
}

func TestGPSD_ClosedWithoutFix(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewGPSD(addr).Locate(ctx, domain.Query{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestGPSD_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewGPSD(addr).Locate(context.Background(), domain.Query{})
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}
