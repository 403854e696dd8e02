package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"delyzer.dev/delyzer/model"
)

// Read operations backing the API. Implemented by
// delyzer.QueryService.
type Queries interface {
	Departures() ([]*model.Departure, error)
	Departure(id int64) (*model.Departure, error)
	Lines() ([]model.Line, error)
	Stations() (map[int]string, error)
	LineDelays() ([]model.LineDelay, error)
	LineDelay(line string, direction string) ([]model.LineDelay, error)
	TimeDelays(line string, direction string) ([]model.TimeslotDelay, error)
	StationDelays(line string, direction string) ([]model.StationDelay, error)
	StationRisks(line string, direction string) ([]model.StationDelay, error)
	StationRisk(name string) ([]model.StationDelay, error)
	LineRisks() ([]model.LineDelay, error)
	LineRisk(line string, direction string) ([]model.LineDelay, error)
	Ping() error
}

type Options struct {
	// Origins allowed to make cross-origin requests. Defaults to
	// any origin.
	AllowedOrigins []string

	// Log every request.
	LogRequests bool
}

// Builds the API router.
func NewRouter(q Queries, opts Options) http.Handler {
	h := NewHandler(q)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.LogRequests {
		r.Use(middleware.Logger)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.StripSlashes)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	r.Get("/health", h.Health)

	r.Get("/departures", h.GetDepartures)
	r.Get("/departures/{id}", h.GetDeparture)
	r.Get("/lines", h.GetLines)
	r.Get("/stations", h.GetStations)

	r.Get("/delay/lines", h.GetLineDelays)
	r.Get("/delay/line/{line}/{direction}", h.GetLineDelay)
	r.Get("/delay/times", h.GetTimeDelays)
	r.Get("/delay/times/{line}/{direction}", h.GetTimeDelays)
	r.Get("/delay/stations", h.GetStationDelays)
	r.Get("/delay/stations/{line}/{direction}", h.GetStationDelays)

	r.Get("/propability/stations", h.GetStationRisks)
	r.Get("/propability/stations/{line}/{direction}", h.GetStationRisks)
	r.Get("/propability/station/{name}", h.GetStationRisk)
	r.Get("/propability/lines", h.GetLineRisks)
	r.Get("/propability/line/{line}/{direction}", h.GetLineRisk)

	return r
}

// Serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("API server starting on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
