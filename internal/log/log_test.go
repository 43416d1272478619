package log

import (
	"bytes"
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_WritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := &log.Logger{Handler: NewHandler(&buf), Level: log.DebugLevel}

	logger.WithFields(log.Fields{"zeta": 1, "alpha": "x"}).Warn("breaker opened")

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, " W breaker opened alpha=x zeta=1\n")
}

func TestInitLogger_FallsBackToInfoOnBadLevel(t *testing.T) {
	t.Setenv("GATEWAY_LOG", "verbose")
	InitLogger()

	l, ok := log.Log.(*log.Logger)
	require.True(t, ok)
	assert.Equal(t, log.InfoLevel, l.Level)
}
