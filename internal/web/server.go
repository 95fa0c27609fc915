// Package web serves the extraction form as server-rendered HTML backed by a single controller.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/extractor"
	"github.com/alanbriolat/extractor/async"
	"github.com/alanbriolat/extractor/internal/controller"
	"github.com/alanbriolat/extractor/internal/i18n"
	"github.com/alanbriolat/extractor/internal/pubsub"
)

//go:embed templates/*.html
var templates embed.FS

const shutdownTimeout = 5 * time.Second

type Server struct {
	controller *controller.Controller
	translator *i18n.Translator
	lang       string
	log        *zap.SugaredLogger
	tmpl       *template.Template
	mux        *http.ServeMux

	// Submission outcomes, for logging.
	finished pubsub.Channel[controller.Event]
	done     chan struct{}
}

type pageData struct {
	Lang    string
	State   controller.State
	Display controller.Display
	Toasts  []string
}

type stateResponse struct {
	Mode         extractor.Mode     `json:"mode"`
	Input        string             `json:"input"`
	Diarization  bool               `json:"diarization"`
	Phase        controller.Phase   `json:"phase"`
	Progress     int                `json:"progress"`
	Display      controller.Display `json:"display"`
	CanSubmit    bool               `json:"can_submit"`
	DownloadLink string             `json:"download_link,omitempty"`
}

// NewServer creates the web UI for ctrl, rendering messages in lang.
func NewServer(ctrl *controller.Controller, lang string) (*Server, error) {
	s := &Server{
		controller: ctrl,
		translator: i18n.New(lang),
		lang:       lang,
		log:        zap.S().Named("web"),
		finished:   pubsub.NewChannel[controller.Event](1),
		done:       make(chan struct{}),
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{"t": s.translator.T}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl

	onlyFinished := pubsub.NewFilteredSender[controller.Event](s.finished, func(e controller.Event) bool {
		_, ok := e.(controller.SubmissionFinished)
		return ok
	})
	if err := ctrl.AddSubscriber(onlyFinished); err != nil {
		return nil, err
	}
	go s.logFinished()

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/mode", s.handleMode)
	s.mux.HandleFunc("/submit", s.handleSubmit)
	s.mux.HandleFunc("/download", s.handleDownload)
	s.mux.HandleFunc("/state", s.handleState)
	s.mux.HandleFunc("/", s.handleIndex)
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve handles requests on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: s.mux}
	s.log.Infof("listening on http://%v", lis.Addr())
	served := async.Run(func() error { return srv.Serve(lis) })

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("shutdown: %v", err)
		}
		err = <-served
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close detaches the server from the controller's events.
func (s *Server) Close() {
	s.finished.Close()
	<-s.done
}

func (s *Server) logFinished() {
	defer close(s.done)
	for e := range s.finished.Receive() {
		f := e.(controller.SubmissionFinished)
		if f.Outcome == controller.OutcomeFailed {
			s.log.Warnw("submission failed", "attempt_id", f.AttemptID(), "error", f.Err)
		} else {
			s.log.Infow("submission succeeded", "attempt_id", f.AttemptID(), "download_link", f.DownloadLink)
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Anything unknown goes back to the form
	if r.URL.Path != "/" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// HEAD must not consume notifications meant for the next GET
	var state controller.State
	var notifications []controller.Notification
	if r.Method == http.MethodHead {
		state = s.controller.Snapshot()
	} else {
		state, notifications = s.controller.Drain()
	}
	data := pageData{
		Lang:    s.lang,
		State:   state,
		Display: state.Display(),
	}
	for _, n := range notifications {
		s.log.Debugf("notification %v: %v", n.Key, n.Err)
		data.Toasts = append(data.Toasts, s.translator.T(n.Key))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.log.Errorf("template rendering failed: %v", err)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode, err := extractor.ParseMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.controller.SetMode(mode); err != nil {
		s.log.Debugf("mode change refused: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	err := s.controller.SetInput(r.PostForm.Get("input"))
	if err == nil && s.controller.Snapshot().Mode == extractor.ModeYouTube {
		err = s.controller.SetDiarization(r.PostForm.Get("diarization") != "")
	}
	if err == nil {
		err = s.controller.Submit()
	}
	if err != nil {
		// Validation failures reach the user as notifications, everything else is just ignored
		s.log.Debugf("submit refused: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodHead:
		// Only a real GET hands the link over
		if link := s.controller.Snapshot().DownloadLink; link != "" {
			http.Redirect(w, r, link, http.StatusFound)
		} else {
			http.Redirect(w, r, "/", http.StatusFound)
		}
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	link := s.controller.Acknowledge()
	if link.IsNone() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, link.Unwrap(), http.StatusFound)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.controller.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(stateResponse{
		Mode:         state.Mode,
		Input:        state.Input,
		Diarization:  state.Diarization,
		Phase:        state.Phase,
		Progress:     state.Progress,
		Display:      state.Display(),
		CanSubmit:    state.CanSubmit(),
		DownloadLink: state.DownloadLink,
	})
}
