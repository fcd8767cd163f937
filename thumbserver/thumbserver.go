package thumbserver

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"regexp"
	"strings"

	"satimage-server/earthengine"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const thumbSize = 256

// IDPattern matches the thumbnail ids served under /api/thumb/.
const IDPattern = "[A-Za-z0-9_-]+"

var validID = regexp.MustCompile("^" + IDPattern + "$")

// ProxyURL returns a rewriter from Earth Engine thumbnail URLs to the
// /api/thumb/{id}.png route under base. URLs that do not carry a servable
// thumbnail id are returned as is.
func ProxyURL(base string) func(string) string {
	base = strings.TrimSuffix(base, "/")
	return func(upstream string) string {
		id := earthengine.ThumbnailID(upstream)
		if !validID.MatchString(id) {
			return upstream
		}
		return base + "/api/thumb/" + id + ".png"
	}
}

// Fetcher streams the pixels of a rendered thumbnail.
type Fetcher interface {
	FetchThumbnail(ctx context.Context, id string, w io.Writer) error
}

// ThumbServer proxies rendered thumbnails through the service credentials.
type ThumbServer struct {
	Client Fetcher
}

func New(c Fetcher) *ThumbServer {
	return &ThumbServer{Client: c}
}

func blankImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, thumbSize, thumbSize))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)
	return img
}

// writeErrorThumb renders err as red text so that <img> consumers show it.
func writeErrorThumb(w http.ResponseWriter, err error) {
	img := blankImage()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(0), Y: fixed.I(thumbSize / 2)},
	}
	d.DrawString(err.Error())

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusBadGateway)
	if err := png.Encode(w, img); err != nil {
		log.Errorf("error thumb encode: %v", err)
	}
}

func (s *ThumbServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ID := mux.Vars(r)["id"]
	// Buffer so a failed upstream fetch can still be answered with an error image.
	var buf bytes.Buffer
	if err := s.Client.FetchThumbnail(r.Context(), ID, &buf); err != nil {
		log.Errorf("thumb proxy failed: %v", err)
		writeErrorThumb(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := io.Copy(w, &buf); err != nil {
		log.Errorf("thumb write: %v", err)
	}
}
