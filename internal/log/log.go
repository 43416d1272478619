// Package log configura o apex/log usado por todo o gateway.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// InitLogger instala o handler compacto e define o nível a partir de
// GATEWAY_LOG (padrão INFO).
func InitLogger() {
	level := strings.ToUpper(strings.TrimSpace(os.Getenv("GATEWAY_LOG")))
	if level == "" {
		level = "INFO"
	}
	log.SetHandler(NewHandler(os.Stdout))
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// Handler escreve uma linha por entrada: "data L mensagem k=v k=v".
type Handler struct {
	mu  sync.Mutex
	out io.Writer
}

func NewHandler(w io.Writer) *Handler {
	return &Handler{out: w}
}

// HandleLog implementa log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", ts.Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields.Get(k))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}
