package imageserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"satimage-server/imagery"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// Thumbnailer produces the thumbnail URL for a region request.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, coordinates []json.RawMessage, bufferKM int) (string, error)
}

type ImageServer struct {
	Service         Thumbnailer
	DefaultBufferKM int
	// Timeout bounds the upstream work of one request; zero means none.
	Timeout time.Duration
	// PublicURL, if set, rewrites the thumbnail URL before it is returned.
	PublicURL func(string) string
}

func New(s Thumbnailer, defaultBufferKM int, timeout time.Duration) *ImageServer {
	return &ImageServer{Service: s, DefaultBufferKM: defaultBufferKM, Timeout: timeout}
}

type imageRequest struct {
	Coordinates []json.RawMessage `json:"coordinates"`
	BufferKM    *json.Number      `json:"buffer_km"`
}

// bufferKM accepts integral values in either integer or float notation.
func (r *imageRequest) bufferKM(def int) (int, error) {
	if r.BufferKM == nil {
		return def, nil
	}
	if n, err := r.BufferKM.Int64(); err == nil {
		return int(n), nil
	}
	f, err := r.BufferKM.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("buffer_km: value is not a valid integer: %s", r.BufferKM.String())
	}
	return int(f), nil
}

type imageResponse struct {
	ImageURL string `json:"image_url"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func parseRequest(r *http.Request) (*imageRequest, error) {
	req := &imageRequest{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(req); err != nil {
		return nil, fmt.Errorf("invalid request body: %v", err)
	}
	if req.Coordinates == nil {
		return nil, errors.New("coordinates: field required")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("image encode: %v", err)
	}
}

func (s *ImageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		log.Errorf("image parseRequest: %v", err)
		writeJSON(w, http.StatusUnprocessableEntity, &errorResponse{Detail: err.Error()})
		return
	}
	bufferKM, err := req.bufferKM(s.DefaultBufferKM)
	if err != nil {
		log.Errorf("image parseRequest: %v", err)
		writeJSON(w, http.StatusUnprocessableEntity, &errorResponse{Detail: err.Error()})
		return
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Image request: %s", spew.Sdump(req))
	}

	ctx := r.Context()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	t := time.Now()
	url, err := s.Service.Thumbnail(ctx, req.Coordinates, bufferKM)
	switch {
	case imagery.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, &errorResponse{Detail: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, &errorResponse{Detail: err.Error()})
		return
	}
	log.Debugf("Thumbnail in %v", time.Since(t))
	if s.PublicURL != nil {
		url = s.PublicURL(url)
	}

	writeJSON(w, http.StatusOK, &imageResponse{ImageURL: url})
}
