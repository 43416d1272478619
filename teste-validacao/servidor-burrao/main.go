// servidor-burrao imita a API da clínica para testar o gateway na mão.
//
// FAIL_EVERY=n faz toda n-ésima requisição devolver 500 (abre o breaker);
// DELAY=300ms atrasa as respostas (mostra a coalescência no /debug/stats).
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mylog "clinic-gateway/internal/log"

	"github.com/apex/log"
	"github.com/google/uuid"
)

type checkIn struct {
	ID        string    `json:"id"`
	Staff     string    `json:"staff"`
	Kind      string    `json:"kind"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	CreatedAt time.Time `json:"created_at"`
}

type api struct {
	failEvery int64
	delay     time.Duration
	count     atomic.Int64

	mu       sync.Mutex
	checkIns []checkIn
}

func main() {
	mylog.InitLogger()

	a := &api{}
	a.failEvery, _ = strconv.ParseInt(os.Getenv("FAIL_EVERY"), 10, 64)
	a.delay, _ = time.ParseDuration(os.Getenv("DELAY"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/attendance", a.attendance)
	mux.HandleFunc("POST /api/attendance/{kind}", a.record)
	mux.HandleFunc("GET /api/schedules", a.schedules)
	mux.HandleFunc("GET /api/dashboard/stats", a.dashboard)
	mux.HandleFunc("GET /api/profile", a.profile)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	log.WithFields(log.Fields{"addr": addr, "fail_every": a.failEvery, "delay": a.delay}).Info("fake clinic api listening")
	if err := http.ListenAndServe(addr, a.wrap(mux)); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

// wrap aplica atraso e falhas programadas.
func (a *api) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := a.count.Add(1)
		log.WithFields(log.Fields{"n": n, "method": r.Method, "path": r.URL.Path}).Info("hit")

		if a.delay > 0 {
			time.Sleep(a.delay)
		}
		if a.failEvery > 0 && n%a.failEvery == 0 {
			http.Error(w, `{"message":"Server Error"}`, http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *api) attendance(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}

	a.mu.Lock()
	out := make([]checkIn, 0, len(a.checkIns))
	for _, c := range a.checkIns {
		if c.CreatedAt.Format("2006-01-02") == day {
			out = append(out, c)
		}
	}
	a.mu.Unlock()

	reply(w, http.StatusOK, map[string]any{"date": day, "data": out})
}

func (a *api) record(w http.ResponseWriter, r *http.Request) {
	var c checkIn
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		reply(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}
	c.ID = uuid.NewString()
	c.Kind = r.PathValue("kind")
	c.CreatedAt = time.Now()

	a.mu.Lock()
	a.checkIns = append(a.checkIns, c)
	a.mu.Unlock()

	reply(w, http.StatusCreated, c)
}

func (a *api) schedules(w http.ResponseWriter, r *http.Request) {
	reply(w, http.StatusOK, map[string]any{
		"week_start": r.URL.Query().Get("week_start"),
		"shifts": []map[string]string{
			{"day": "monday", "start": "07:00", "end": "13:00", "unit": "paulista"},
			{"day": "wednesday", "start": "13:00", "end": "19:00", "unit": "pinheiros"},
		},
	})
}

func (a *api) dashboard(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	n := len(a.checkIns)
	a.mu.Unlock()
	reply(w, http.StatusOK, map[string]any{"check_ins": n, "generated_at": time.Now()})
}

func (a *api) profile(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		reply(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	reply(w, http.StatusOK, map[string]string{"name": "Equipe de teste", "role": "nurse"})
}
