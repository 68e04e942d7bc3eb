package http

import (
	"net/http"

	"fintrack/internal/core"
)

type adviceJSON struct {
	Advice []string `json:"advice"`
}

// handleAdvice always answers 200: generator failures come back as a single
// advisory line.
func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	txs := s.txs.List()
	tips := s.advisor.Advise(r.Context(), txs, core.Summarize(txs))
	if tips == nil {
		tips = []string{}
	}
	NewJSONResponse().JSON(adviceJSON{Advice: tips}).Write(w)
}

func (s *Server) handleAdviceStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]bool{"loading": s.advisor.Loading()}).Write(w)
}
