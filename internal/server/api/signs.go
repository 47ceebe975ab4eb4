package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// SignsHandler handles /api/signs and /api/signs/{index}[/thumbnail|/speak].
type SignsHandler struct {
	session Session
}

// NewSignsHandler creates a new SignsHandler.
func NewSignsHandler(s Session) *SignsHandler {
	return &SignsHandler{session: s}
}

func (h *SignsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/signs, /api/signs/{index}, /api/signs/{index}/{sub}
	path := strings.TrimPrefix(r.URL.Path, "/api/signs")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.save(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.SplitN(path, "/", 2)
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sign index")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		h.delete(w, r, index)
	case sub == "thumbnail" && r.Method == http.MethodGet:
		h.thumbnail(w, r, index)
	case sub == "speak" && r.Method == http.MethodPost:
		h.speak(w, r, index)
	case sub == "" || sub == "thumbnail" || sub == "speak":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

type saveSignRequest struct {
	Name string `json:"name"`
}

type signResponse struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Landmarks int    `json:"landmarks"`
	Thumbnail bool   `json:"thumbnail"`
}

type listSignsResponse struct {
	Signs []signResponse `json:"signs"`
}

// list handles GET /api/signs. Landmarks and images are summarized.
func (h *SignsHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.listing())
}

func (h *SignsHandler) listing() listSignsResponse {
	vocab := h.session.Vocabulary()
	resp := listSignsResponse{Signs: make([]signResponse, 0, len(vocab))}
	for i, rec := range vocab {
		resp.Signs = append(resp.Signs, signResponse{
			Index:     i,
			Name:      rec.Name,
			Landmarks: len(rec.Landmarks),
			Thumbnail: len(rec.Thumbnail) > 0,
		})
	}
	return resp
}

// save handles POST /api/signs. It answers 201 when the live pose was
// stored and 204 when the request was ignored (blank name or no hand).
func (h *SignsHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	saved, err := h.session.SaveSign(r.Context(), req.Name)
	if err != nil {
		if saved {
			writeError(w, http.StatusInternalServerError, "Sign saved but could not be persisted")
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !saved {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusCreated, h.listing())
}

// delete handles DELETE /api/signs/{index}.
func (h *SignsHandler) delete(w http.ResponseWriter, r *http.Request, index int) {
	if err := h.session.DeleteSign(r.Context(), index); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clear handles DELETE /api/signs.
func (h *SignsHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearSigns(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// thumbnail handles GET /api/signs/{index}/thumbnail as a PNG download
// named after the sign.
func (h *SignsHandler) thumbnail(w http.ResponseWriter, r *http.Request, index int) {
	vocab := h.session.Vocabulary()
	if index < 0 || index >= len(vocab) {
		writeError(w, http.StatusNotFound, "Sign not found")
		return
	}

	rec := vocab[index]
	if len(rec.Thumbnail) == 0 {
		writeError(w, http.StatusNotFound, "Sign has no thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": rec.Name + ".png",
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Thumbnail)))
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Thumbnail)
}

// speak handles POST /api/signs/{index}/speak.
func (h *SignsHandler) speak(w http.ResponseWriter, r *http.Request, index int) {
	if err := h.session.Announce(index); err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("Cannot announce sign %d", index))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
