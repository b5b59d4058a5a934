// Package linkview serves the HTTP endpoint that consumes internal share
// links. Backends without provider-side pre-authorized URLs point their
// links here; the handler verifies the token and performs the requested
// operation against the backend.
package linkview

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/pkg/registry"
	"github.com/caskstore/cask/pkg/storage"
)

// TokenBackend is a storage backend that can verify internal link tokens.
// Backends embedding storage.InternalLinks satisfy it.
type TokenBackend interface {
	storage.Backend
	DeserializeLinkToken(token string) (*storage.LinkTokenData, error)
}

// Handler serves share links for every token-capable backend in a
// registry. Requests address a backend by path ("/{backend}?token=...")
// and are answered according to the token's permitted operations:
// GET downloads, POST and PUT upload the request body, DELETE removes.
type Handler struct {
	registry *registry.Registry
}

// NewHandler creates a Handler over the given registry.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(r.URL.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	backend, err := h.registry.Get(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	tb, ok := backend.(TokenBackend)
	if !ok {
		// The backend exists but does not serve internal links.
		http.NotFound(w, r)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.NotFound(w, r)
		return
	}

	data, err := tb.DeserializeLinkToken(token)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrTokenMalformed):
		http.NotFound(w, r)
		return
	case errors.Is(err, storage.ErrSignatureInvalid), errors.Is(err, storage.ErrTokenExpired):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	default:
		logger.Error("link token verification failed for backend %s: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.download(w, r, tb, data)
	case http.MethodPost, http.MethodPut:
		h.upload(w, r, tb, data)
	case http.MethodDelete:
		h.remove(w, r, tb, data)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, backend TokenBackend, data *storage.LinkTokenData) {
	if !data.Operations.Has(storage.OperationDownload) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	f, err := backend.Open(r.Context(), data.Path, storage.ModeRead)
	if err != nil {
		if storage.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		logger.Error("opening %s on %s: %v", data.Path, backend.Name(), err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", data.Path))
	if _, err := io.Copy(w, f); err != nil {
		logger.Error("streaming %s from %s: %v", data.Path, backend.Name(), err)
	}
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, backend TokenBackend, data *storage.LinkTokenData) {
	if !data.Operations.Has(storage.OperationUpload) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	defer r.Body.Close()
	if _, err := storage.Upload(r.Context(), backend, r.Body, data.Path, nil); err != nil {
		logger.Error("uploading %s to %s: %v", data.Path, backend.Name(), err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Write([]byte("OK"))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, backend TokenBackend, data *storage.LinkTokenData) {
	if !data.Operations.Has(storage.OperationRemove) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	if err := backend.Delete(r.Context(), data.Path); err != nil {
		if storage.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		logger.Error("deleting %s from %s: %v", data.Path, backend.Name(), err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Write([]byte("OK"))
}
