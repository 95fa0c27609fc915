package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/extractor"
	"github.com/alanbriolat/extractor/internal/controller"
)

type submitFunc func(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error)

func (f submitFunc) Submit(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
	return f(ctx, req, progress)
}

func newTestServer(t *testing.T, submitter extractor.Submitter) (*Server, *controller.Controller) {
	ctrl := controller.New(context.Background(), controller.Config{}, submitter)
	s, err := NewServer(ctrl, "en")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctrl.Close()
		s.Close()
	})
	return s, ctrl
}

func do(s *Server, method string, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func succeedWith(link string) submitFunc {
	return func(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
		progress(1, 1)
		return extractor.Response{DownloadLink: link}, nil
	}
}

func TestUnknownPathRedirects(t *testing.T) {
	assert := assert_.New(t)
	s, _ := newTestServer(t, succeedWith("http://backend/out.zip"))

	for _, path := range []string{"/foo", "/foo/bar", "/index.html"} {
		w := do(s, http.MethodGet, path, nil)
		assert.Equal(http.StatusFound, w.Code, path)
		assert.Equal("/", w.Header().Get("Location"), path)
	}
}

func TestIndexShowsForm(t *testing.T) {
	assert := assert_.New(t)
	s, _ := newTestServer(t, succeedWith("http://backend/out.zip"))

	w := do(s, http.MethodGet, "/", nil)
	assert.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(body, `id="form"`)
	assert.Contains(body, "Enter a Twitter username")
	assert.NotContains(body, `name="diarization"`)
}

func TestChangeMode(t *testing.T) {
	assert := assert_.New(t)
	s, ctrl := newTestServer(t, succeedWith("http://backend/out.zip"))

	w := do(s, http.MethodPost, "/mode", url.Values{"mode": {"youtube"}})
	assert.Equal(http.StatusSeeOther, w.Code)
	assert.Equal(extractor.ModeYouTube, ctrl.Snapshot().Mode)

	var state stateResponse
	assert.NoError(json.Unmarshal(do(s, http.MethodGet, "/state", nil).Body.Bytes(), &state))
	assert.Equal(extractor.ModeYouTube, state.Mode)
	assert.False(state.CanSubmit)

	body := do(s, http.MethodGet, "/", nil).Body.String()
	assert.Contains(body, "Enter YouTube URLs")
	assert.Contains(body, `name="diarization"`)

	w = do(s, http.MethodPost, "/mode", url.Values{"mode": {"vimeo"}})
	assert.Equal(http.StatusBadRequest, w.Code)
	assert.Equal(extractor.ModeYouTube, ctrl.Snapshot().Mode)

	w = do(s, http.MethodGet, "/mode", nil)
	assert.Equal(http.StatusMethodNotAllowed, w.Code)
}

func TestInvalidSubmitShowsToastOnce(t *testing.T) {
	assert := assert_.New(t)
	s, ctrl := newTestServer(t, succeedWith("http://backend/out.zip"))

	w := do(s, http.MethodPost, "/submit", url.Values{"input": {"abc"}})
	assert.Equal(http.StatusSeeOther, w.Code)
	assert.Equal(controller.PhaseIdle, ctrl.Snapshot().Phase)

	// HEAD leaves the message for the real render
	assert.Equal(http.StatusOK, do(s, http.MethodHead, "/", nil).Code)

	body := do(s, http.MethodGet, "/", nil).Body.String()
	assert.Contains(body, "Please enter a valid Twitter username")
	// The input is kept so it can be corrected
	assert.Contains(body, `value="abc"`)

	body = do(s, http.MethodGet, "/", nil).Body.String()
	assert.NotContains(body, "Please enter a valid Twitter username")
}

func TestInvalidSubmitToastOnFirstRender(t *testing.T) {
	assert := assert_.New(t)
	for i := 0; i < 100; i++ {
		s, _ := newTestServer(t, succeedWith("http://backend/out.zip"))
		do(s, http.MethodPost, "/submit", url.Values{"input": {"abc"}})
		body := do(s, http.MethodGet, "/", nil).Body.String()
		if !assert.Contains(body, "Please enter a valid Twitter username", "attempt %d", i) {
			return
		}
	}
}

func TestSubmitAndDownload(t *testing.T) {
	assert := assert_.New(t)
	var got extractor.Request
	s, ctrl := newTestServer(t, submitFunc(func(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
		got = req
		return extractor.Response{DownloadLink: "http://backend/files/transcripts.zip"}, nil
	}))

	do(s, http.MethodPost, "/mode", url.Values{"mode": {"youtube"}})
	w := do(s, http.MethodPost, "/submit", url.Values{
		"input":       {"https://youtu.be/dQw4w9WgXcQ, nonsense"},
		"diarization": {"on"},
	})
	assert.Equal(http.StatusSeeOther, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(ctrl.Wait(ctx))
	assert.Equal(extractor.ModeYouTube, got.Mode)
	assert.Equal([]string{"https://youtu.be/dQw4w9WgXcQ"}, got.URLs)
	assert.True(got.Diarization)

	body := do(s, http.MethodGet, "/", nil).Body.String()
	assert.Contains(body, `href="/download"`)
	assert.NotContains(body, `id="form"`)

	var state stateResponse
	w = do(s, http.MethodGet, "/state", nil)
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(controller.DisplayDownload, state.Display)
	assert.False(state.CanSubmit)
	assert.Equal("http://backend/files/transcripts.zip", state.DownloadLink)

	// Prefetching the link doesn't use it up
	w = do(s, http.MethodHead, "/download", nil)
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("http://backend/files/transcripts.zip", w.Header().Get("Location"))
	w = do(s, http.MethodPost, "/download", nil)
	assert.Equal(http.StatusMethodNotAllowed, w.Code)
	assert.Equal("http://backend/files/transcripts.zip", ctrl.Snapshot().DownloadLink)

	w = do(s, http.MethodGet, "/download", nil)
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("http://backend/files/transcripts.zip", w.Header().Get("Location"))

	// The link is handed over exactly once
	w = do(s, http.MethodGet, "/download", nil)
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/", w.Header().Get("Location"))
	assert.Contains(do(s, http.MethodGet, "/", nil).Body.String(), `id="form"`)
}

func TestSubmitFailureShowsToast(t *testing.T) {
	assert := assert_.New(t)
	s, ctrl := newTestServer(t, submitFunc(func(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
		return extractor.Response{}, errors.New("connection refused")
	}))

	do(s, http.MethodPost, "/submit", url.Values{"input": {"jack_dorsey"}})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(ctrl.Wait(ctx))

	body := do(s, http.MethodGet, "/", nil).Body.String()
	assert.Contains(body, "Unable to process your request")
	assert.Contains(body, `id="form"`)
}

func TestProgressPage(t *testing.T) {
	assert := assert_.New(t)
	release := make(chan struct{})
	started := make(chan struct{})
	s, ctrl := newTestServer(t, submitFunc(func(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc) (extractor.Response, error) {
		progress(1, 2)
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return extractor.Response{}, ctx.Err()
		}
		return extractor.Response{DownloadLink: "http://backend/out.zip"}, nil
	}))

	do(s, http.MethodPost, "/submit", url.Values{"input": {"jack_dorsey"}})
	<-started

	body := do(s, http.MethodGet, "/", nil).Body.String()
	assert.Contains(body, `id="progress"`)
	assert.Contains(body, "width: 50%")
	assert.Contains(body, `http-equiv="refresh"`)

	// Changes are refused while the request is in flight
	do(s, http.MethodPost, "/mode", url.Values{"mode": {"youtube"}})
	assert.Equal(extractor.ModeTwitter, ctrl.Snapshot().Mode)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(ctrl.Wait(ctx))
	assert.Contains(do(s, http.MethodGet, "/", nil).Body.String(), `href="/download"`)
}
