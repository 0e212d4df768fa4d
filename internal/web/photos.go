package web

import (
	"net/http"

	"facerank/internal/back"

	"github.com/go-chi/chi"
)

type createPhotoRequest struct {
	OwnerID string `json:"owner_id"`
}

func (s *Server) createPhoto(w http.ResponseWriter, r *http.Request) {
	var req createPhotoRequest
	if err := decodeBody(r, &req); err != nil {
		s.error(w, err)
		return
	}

	photo, err := s.back.CreatePhoto(r.Context(), req.OwnerID)
	if err != nil {
		s.error(w, err)
		return
	}

	s.response(w, http.StatusCreated, photo)
}

func (s *Server) getPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		s.error(w, err)
		return
	}

	photo, err := s.back.GetPhoto(r.Context(), id)
	if err != nil {
		s.error(w, err)
		return
	}

	noStore(w)
	s.response(w, http.StatusOK, photo)
}

func (s *Server) deletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		s.error(w, err)
		return
	}

	if err := s.back.DeletePhoto(r.Context(), id); err != nil {
		s.error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getOwnerPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.back.GetOwnerPhotos(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, err)
		return
	}

	noStore(w)
	s.response(w, http.StatusOK, photos)
}

type pairResponse struct {
	PhotoA back.Photo `json:"photo_a"`
	PhotoB back.Photo `json:"photo_b"`
}

func (s *Server) getPair(w http.ResponseWriter, r *http.Request) {
	a, b, err := s.back.SelectPair(r.Context(), r.URL.Query().Get("exclude_owner"))
	if err != nil {
		s.error(w, err)
		return
	}

	noStore(w)
	s.response(w, http.StatusOK, pairResponse{a, b})
}

type banResponse struct {
	PhotosAffected int64 `json:"photos_affected"`
}

func (s *Server) banOwner(w http.ResponseWriter, r *http.Request) {
	affected, err := s.back.BanOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, err)
		return
	}

	s.response(w, http.StatusOK, banResponse{affected})
}

func (s *Server) unbanOwner(w http.ResponseWriter, r *http.Request) {
	affected, err := s.back.UnbanOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, err)
		return
	}

	s.response(w, http.StatusOK, banResponse{affected})
}
