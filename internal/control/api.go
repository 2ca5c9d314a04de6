// ABOUTME: HTTP handlers for mixer control
// ABOUTME: Request and response types plus error to status mapping
package control

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sendspin/mixbus/internal/version"
	"github.com/Sendspin/mixbus/pkg/mixer"
)

// Mixer is the part of *mixer.Mixer the API drives
type Mixer interface {
	AddStream(src io.Reader, opts mixer.StreamOptions) (string, error)
	RemoveStream(id string)
	PauseStream(id string)
	ResumeStream(id string)
	StopStream(id string)
	SetStreamVolume(id string, volume float64)
	FadeOutAndPause(id string, d time.Duration) error
	FadeInAndResume(id string, d time.Duration) error
	CrossfadeStreams(outID, inID string, d time.Duration) error
	GetStreamInfo(id string) (mixer.StreamInfo, bool)
	GetAllStreamsInfo() []mixer.StreamInfo
	Running() bool
}

// API handles HTTP control endpoints
type API struct {
	mixer     Mixer
	opener    Opener
	startTime time.Time
}

// NewAPI creates a new API handler
func NewAPI(m Mixer, opener Opener) *API {
	return &API{
		mixer:     m,
		opener:    opener,
		startTime: time.Now(),
	}
}

// AddStreamRequest is the request body for POST /streams
type AddStreamRequest struct {
	Source     string   `json:"source" binding:"required,oneof=tone file url"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Volume     *float64 `json:"volume"`
	DurationMs int64    `json:"duration_ms"`
	Frequency  float64  `json:"frequency"`
	Paused     bool     `json:"paused"`
}

// FadeRequest is the optional body for fade endpoints
type FadeRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

// VolumeRequest is the request body for the volume endpoint
type VolumeRequest struct {
	Volume *float64 `json:"volume" binding:"required"`
}

// CrossfadeRequest is the request body for POST /crossfade
type CrossfadeRequest struct {
	Out        string `json:"out" binding:"required"`
	In         string `json:"in" binding:"required"`
	DurationMs int64  `json:"duration_ms"`
}

// Response is the envelope for mutating endpoints
type Response struct {
	Status   string            `json:"status"`
	StreamID string            `json:"stream_id,omitempty"`
	Stream   *mixer.StreamInfo `json:"stream,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// StreamsResponse is the response for GET /streams
type StreamsResponse struct {
	Count   int                `json:"count"`
	Streams []mixer.StreamInfo `json:"streams"`
}

// Health reports liveness
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
		"running": a.mixer.Running(),
		"streams": len(a.mixer.GetAllStreamsInfo()),
		"uptime":  time.Since(a.startTime).Round(time.Second).String(),
	})
}

// ListStreams returns every stream
func (a *API) ListStreams(c *gin.Context) {
	streams := a.mixer.GetAllStreamsInfo()
	c.JSON(http.StatusOK, StreamsResponse{Count: len(streams), Streams: streams})
}

// GetStream returns one stream
func (a *API) GetStream(c *gin.Context) {
	info, ok := a.mixer.GetStreamInfo(c.Param("id"))
	if !ok {
		notFound(c, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, info)
}

// AddStream opens a source and registers it
func (a *API) AddStream(c *gin.Context) {
	var req AddStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Status: "error", Message: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	log.Printf("[API] Add stream: source=%s url=%s", req.Source, req.URL)

	src, metadata, err := a.opener.Open(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Status: "error", Message: err.Error()})
		return
	}

	id, err := a.mixer.AddStream(src, mixer.StreamOptions{
		Volume:      req.Volume,
		Duration:    time.Duration(req.DurationMs) * time.Millisecond,
		Metadata:    metadata,
		StartPaused: req.Paused,
		CloseSource: true,
	})
	if err != nil {
		src.Close()
		writeError(c, err)
		return
	}

	a.respond(c, http.StatusCreated, "added", id)
}

// RemoveStream deletes a stream
func (a *API) RemoveStream(c *gin.Context) {
	id, ok := a.existing(c)
	if !ok {
		return
	}
	a.mixer.RemoveStream(id)
	c.JSON(http.StatusOK, Response{Status: "removed", StreamID: id})
}

// Pause pauses a stream
func (a *API) Pause(c *gin.Context) {
	if id, ok := a.existing(c); ok {
		a.mixer.PauseStream(id)
		a.respond(c, http.StatusOK, "paused", id)
	}
}

// Resume resumes a stream
func (a *API) Resume(c *gin.Context) {
	if id, ok := a.existing(c); ok {
		a.mixer.ResumeStream(id)
		a.respond(c, http.StatusOK, "playing", id)
	}
}

// Stop stops and removes a stream
func (a *API) Stop(c *gin.Context) {
	if id, ok := a.existing(c); ok {
		a.mixer.StopStream(id)
		c.JSON(http.StatusOK, Response{Status: "stopped", StreamID: id})
	}
}

// SetVolume sets a stream's base volume
func (a *API) SetVolume(c *gin.Context) {
	id, ok := a.existing(c)
	if !ok {
		return
	}
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Status: "error", StreamID: id, Message: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	a.mixer.SetStreamVolume(id, *req.Volume)
	a.respond(c, http.StatusOK, "ok", id)
}

// FadeOut fades a stream out and pauses it
func (a *API) FadeOut(c *gin.Context) {
	id := c.Param("id")
	req, ok := bindFade(c)
	if !ok {
		return
	}
	if err := a.mixer.FadeOutAndPause(id, req); err != nil {
		writeError(c, err)
		return
	}
	a.respond(c, http.StatusOK, "fading_out", id)
}

// FadeIn resumes a paused stream with a fade
func (a *API) FadeIn(c *gin.Context) {
	id := c.Param("id")
	req, ok := bindFade(c)
	if !ok {
		return
	}
	if err := a.mixer.FadeInAndResume(id, req); err != nil {
		writeError(c, err)
		return
	}
	a.respond(c, http.StatusOK, "fading_in", id)
}

// Crossfade fades one stream out while another fades in
func (a *API) Crossfade(c *gin.Context) {
	var req CrossfadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Status: "error", Message: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	log.Printf("[API] Crossfade: %s -> %s (%dms)", req.Out, req.In, req.DurationMs)

	err := a.mixer.CrossfadeStreams(req.Out, req.In, time.Duration(req.DurationMs)*time.Millisecond)
	if err != nil {
		writeError(c, err)
		return
	}
	a.respond(c, http.StatusOK, "crossfading", req.In)
}

// existing resolves :id or writes a 404
func (a *API) existing(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, ok := a.mixer.GetStreamInfo(id); !ok {
		notFound(c, id)
		return "", false
	}
	return id, true
}

func (a *API) respond(c *gin.Context, code int, status, id string) {
	resp := Response{Status: status, StreamID: id}
	if info, ok := a.mixer.GetStreamInfo(id); ok {
		resp.Stream = &info
	}
	c.JSON(code, resp)
}

// bindFade accepts an empty body as the default fade
func bindFade(c *gin.Context) (time.Duration, bool) {
	var req FadeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Status: "error", Message: fmt.Sprintf("invalid request: %v", err)})
			return 0, false
		}
	}
	if req.DurationMs < 0 {
		c.JSON(http.StatusBadRequest, Response{Status: "error", Message: "duration_ms cannot be negative"})
		return 0, false
	}
	return time.Duration(req.DurationMs) * time.Millisecond, true
}

func notFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, Response{Status: "error", StreamID: id, Message: "stream not found"})
}

// writeError maps mixer errors to HTTP statuses
func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, mixer.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, mixer.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, mixer.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	resp := Response{Status: "error", Message: err.Error()}
	var stateErr *mixer.StateError
	if errors.As(err, &stateErr) {
		resp.StreamID = stateErr.StreamID
	}
	c.JSON(code, resp)
}
