package extractor

import (
	"context"
	"fmt"
	"math"
)

// Request is the value sent to the backend for one submission.
type Request struct {
	Mode        Mode
	Username    string
	URLs        []string
	Diarization bool
}

// NewRequest builds the Request for an accepted payload. The diarization flag only applies to YouTube submissions.
func NewRequest(mode Mode, payload Payload, diarization bool) Request {
	req := Request{Mode: mode}
	switch mode {
	case ModeTwitter:
		req.Username = payload.Username
	case ModeYouTube:
		req.URLs = append([]string(nil), payload.URLs...)
		req.Diarization = diarization
	}
	return req
}

func (r Request) String() string {
	switch r.Mode {
	case ModeTwitter:
		return fmt.Sprintf("Request{Mode:%s, Username:%q}", r.Mode, r.Username)
	default:
		return fmt.Sprintf("Request{Mode:%s, URLs:%q, Diarization:%v}", r.Mode, r.URLs, r.Diarization)
	}
}

// VideoIDs extracts the video id of every URL in the request, skipping URLs that don't carry a recognisable id.
func (r Request) VideoIDs() []string {
	var ids []string
	for _, url := range r.URLs {
		if id, err := VideoID(url); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Response is what the backend returns for a successful submission.
type Response struct {
	DownloadLink string `json:"download_link"`
}

// ProgressFunc receives upload progress as bytes sent so far and bytes expected in total (<= 0 if unknown).
type ProgressFunc func(loaded int64, total int64)

// Submitter sends a Request to the backend, reporting upload progress along the way.
type Submitter interface {
	Submit(ctx context.Context, req Request, progress ProgressFunc) (Response, error)
}

// Percent converts a byte count into a whole percentage in [0, 100]. An unknown (or zero) total is treated as 100.
func Percent(loaded int64, total int64) int {
	denominator := float64(total)
	if total <= 0 {
		denominator = 100
	}
	pct := math.Floor(float64(loaded)*100/denominator + 0.5)
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return int(pct)
	}
}
