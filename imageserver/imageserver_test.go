package imageserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"satimage-server/earthengine"
	"satimage-server/imagery"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeSearcher struct {
	images map[string][]*earthengine.Image
}

func (f *fakeSearcher) ListImages(_ context.Context, q earthengine.Query) ([]*earthengine.Image, error) {
	return f.images[q.Collection], nil
}

type fakeRenderer struct{}

func (fakeRenderer) CreateThumbnail(_ context.Context, t *earthengine.Thumbnail) (string, error) {
	return "https://earthengine.googleapis.com/v1/projects/p/thumbnails/abc:getPixels", nil
}

type recordingService struct {
	bufferKM int
	deadline bool
}

func (s *recordingService) Thumbnail(ctx context.Context, _ []json.RawMessage, bufferKM int) (string, error) {
	s.bufferKM = bufferKM
	_, s.deadline = ctx.Deadline()
	return "url", nil
}

func post(h http.Handler, body string) (*httptest.ResponseRecorder, map[string]string) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/get_satellite_image/", strings.NewReader(body)))
	out := map[string]string{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func newServer(images map[string][]*earthengine.Image) *ImageServer {
	svc := &imagery.Service{
		Selector: &imagery.Selector{Searcher: &fakeSearcher{images: images}, Policy: imagery.DefaultPolicy()},
		Renderer: fakeRenderer{},
	}
	return New(svc, 5, time.Minute)
}

func TestImageServer(t *testing.T) {
	policy := imagery.DefaultPolicy()

	Convey("Given a point request with a primary image available", t, func() {
		s := newServer(map[string][]*earthengine.Image{
			policy.Primary.ID: {{ID: "S2/x", Properties: map[string]interface{}{"CLOUDY_PIXEL_PERCENTAGE": 3.0}}},
		})

		rec, out := post(s, `{"coordinates": [[10.0, 45.0]], "buffer_km": 5}`)

		Convey("Then the image URL is returned", func() {
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "application/json")
			So(out["image_url"], ShouldNotBeEmpty)
		})
	})

	Convey("Given a polygon with no qualifying image in either collection", t, func() {
		s := newServer(map[string][]*earthengine.Image{})

		rec, out := post(s, `{"coordinates": [[10.0,45.0],[10.1,45.0],[10.1,45.1],[10.0,45.1]]}`)

		Convey("Then 404 is returned with the detail", func() {
			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(out["detail"], ShouldEqual, "No images found for this region.")
		})
	})

	Convey("Given malformed coordinates", t, func() {
		s := newServer(map[string][]*earthengine.Image{})

		rec, out := post(s, `{"coordinates": [[10.0, 45.0], ["a"]]}`)

		Convey("Then 500 is returned with the error message", func() {
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(out["detail"], ShouldContainSubstring, "coordinate 1")
		})
	})

	Convey("Given a body that is not a request", t, func() {
		s := newServer(map[string][]*earthengine.Image{})

		Convey("Invalid JSON is unprocessable", func() {
			rec, _ := post(s, `{"coordinates":`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("Missing coordinates are unprocessable", func() {
			rec, out := post(s, `{"buffer_km": 3}`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(out["detail"], ShouldContainSubstring, "coordinates")
		})
	})

	Convey("Given an upstream failure", t, func() {
		s := New(failingService{}, 5, 0)
		rec, out := post(s, `{"coordinates": [[10.0, 45.0]]}`)
		So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		So(out["detail"], ShouldEqual, "earth engine 503: backend unavailable")
	})

	Convey("Given a recording service", t, func() {
		svc := &recordingService{}

		Convey("buffer_km defaults when omitted", func() {
			post(New(svc, 5, time.Minute), `{"coordinates": [[10.0, 45.0]]}`)
			So(svc.bufferKM, ShouldEqual, 5)
			So(svc.deadline, ShouldBeTrue)
		})

		Convey("An explicit buffer_km wins, including zero", func() {
			post(New(svc, 5, 0), `{"coordinates": [[10.0, 45.0]], "buffer_km": 0}`)
			So(svc.bufferKM, ShouldEqual, 0)
			So(svc.deadline, ShouldBeFalse)
		})

		Convey("An integral float buffer_km is accepted", func() {
			rec, _ := post(New(svc, 5, 0), `{"coordinates": [[10.0, 45.0]], "buffer_km": 8.0}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(svc.bufferKM, ShouldEqual, 8)
		})

		Convey("A fractional buffer_km is unprocessable", func() {
			svc.bufferKM = -1
			rec, out := post(New(svc, 5, 0), `{"coordinates": [[10.0, 45.0]], "buffer_km": 2.5}`)
			So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(out["detail"], ShouldContainSubstring, "buffer_km")
			So(svc.bufferKM, ShouldEqual, -1)
		})

		Convey("PublicURL rewrites the returned URL", func() {
			s := New(svc, 5, 0)
			s.PublicURL = func(u string) string { return "https://proxy/" + u }
			_, out := post(s, `{"coordinates": [[10.0, 45.0]]}`)
			So(out["image_url"], ShouldEqual, "https://proxy/url")
		})
	})
}

type failingService struct{}

func (failingService) Thumbnail(context.Context, []json.RawMessage, int) (string, error) {
	return "", &earthengine.APIError{Status: 503, Message: "backend unavailable"}
}

func TestNotFoundIsDistinct(t *testing.T) {
	Convey("Wrapped not-found errors still map to 404", t, func() {
		So(imagery.IsNotFound(errors.Join(errors.New("ctx"), imagery.ErrNoImages)), ShouldBeTrue)
	})
}
