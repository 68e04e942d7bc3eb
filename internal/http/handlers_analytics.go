package http

import (
	"net/http"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

type analyticsJSON struct {
	Period     string         `json:"period"`
	Categories []categoryJSON `json:"categories"`
	Timeline   []timelineJSON `json:"timeline"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	g := ParseGranularity(r)
	txs := s.txs.List()
	NewJSONResponse().JSON(analyticsJSON{
		Period:     g.String(),
		Categories: toCategoriesJSON(core.ByCategory(txs)),
		Timeline:   toTimelineJSON(core.TimelineWith(txs, g, s.calendar)),
	}).Write(w)
}

func (s *Server) handleCategoriesChart(w http.ResponseWriter, r *http.Request) {
	key := cache.ChartKey("categories", s.ledger.Revision(), "")
	img, err := s.charts.Get(key, func() ([]byte, error) {
		return s.renderer.Categories(core.ByCategory(s.txs.List()))
	})
	s.writeChart(w, r, img, err)
}

func (s *Server) handleTimelineChart(w http.ResponseWriter, r *http.Request) {
	g := ParseGranularity(r)
	key := cache.ChartKey("timeline", s.ledger.Revision(), g.String())
	img, err := s.charts.Get(key, func() ([]byte, error) {
		return s.renderer.Timeline(core.TimelineWith(s.txs.List(), g, s.calendar))
	})
	s.writeChart(w, r, img, err)
}

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, img []byte, err error) {
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
		InternalServerError().Write(w)
		return
	}
	PNG(img).Write(w)
}
