package web

import "net/http"

// getLeaderboard serves a page of the ranking, it is never cached so a vote
// is visible on the next read.
func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.error(w, err)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.error(w, err)
		return
	}

	entries, err := s.back.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		s.error(w, err)
		return
	}

	noStore(w)
	s.response(w, http.StatusOK, entries)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.back.GetStats(r.Context())
	if err != nil {
		s.error(w, err)
		return
	}

	noStore(w)
	s.response(w, http.StatusOK, stats)
}
