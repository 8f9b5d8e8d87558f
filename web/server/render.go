package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/pipeline"
	"github.com/df07/go-stochastic-viz/pkg/renderer"
)

// PassUpdate is the image and statistics after one repetition
type PassUpdate struct {
	Repetition      int    `json:"repetition"`
	RepetitionLevel int    `json:"repetitionLevel"`
	ImageData       string `json:"imageData"` // Base64 encoded PNG
	ElapsedMs       int64  `json:"elapsedMs"`
	Engines         int    `json:"engines"`
	ActiveEngines   int    `json:"activeEngines"`
	SkippedEngines  int    `json:"skippedEngines"`
	DisabledEngines int    `json:"disabledEngines"`
	PrimitiveCount  int    `json:"primitiveCount"`
	IsComplete      bool   `json:"isComplete"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "pass", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// RenderingPipeline contains the executed pipeline and the compositor
// drawing it
type RenderingPipeline struct {
	Pipeline   *pipeline.Pipeline
	Compositor *renderer.Compositor
	Camera     *camera.Camera
}

// handleRender handles progressive rendering with per-repetition image
// streaming via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		s.writeSSEEvents(w, ctx, sseEventChan)
		cancel() // a failed write ends the render
		close(writerDone)
	}()

	// Setup console logging and streaming
	consoleChan, webLogger := s.setupConsoleLogging()
	stopConsole := make(chan struct{})
	consoleDone := make(chan struct{})
	go func() {
		s.streamConsoleMessages(ctx, stopConsole, consoleChan, sseEventChan)
		close(consoleDone)
	}()

	// Senders stop before the event channel closes; the writer then drains
	// it before the handler returns
	defer func() {
		close(stopConsole)
		<-consoleDone
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	rp, err := s.setupRenderingPipeline(req, webLogger)
	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	startTime := time.Now()
	passChan, errChan := rp.Compositor.RenderProgressive(ctx, rp.Camera, camera.DefaultLight(rp.Camera))
	s.handleRenderingEvents(ctx, sseEventChan, passChan, errChan, rp.Pipeline, startTime)

	// the render goroutine owns the compositor until both channels close
	go func() {
		for range passChan {
		}
		for range errChan {
		}
		rp.Compositor.Release()
	}()
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging() (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	webLogger := NewWebLogger(renderID, consoleChan)
	return consoleChan, webLogger
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages forwards console messages as SSE events until stop
// is closed, then forwards whatever is still queued
func (s *Server) streamConsoleMessages(ctx context.Context, stop <-chan struct{}, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent) {
	forward := func(consoleMsg ConsoleMessage) {
		data, err := json.Marshal(consoleMsg)
		if err != nil {
			log.Printf("Error marshaling console message: %v", err)
			return
		}
		select {
		case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
		default:
			// Channel full, skip message to avoid blocking
		}
	}

	for {
		select {
		case consoleMsg := <-consoleChan:
			forward(consoleMsg)

		case <-stop:
			for {
				select {
				case consoleMsg := <-consoleChan:
					forward(consoleMsg)
				default:
					return
				}
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// setupRenderingPipeline builds the pipeline and registers it with a new
// compositor
func (s *Server) setupRenderingPipeline(req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	p, err := pipeline.Build(req.Options, logger)
	if err != nil {
		return nil, err
	}

	config := renderer.DefaultConfig()
	config.RepetitionLevel = req.Options.Repetitions
	compositor := renderer.NewCompositor(config, logger)
	if _, err := p.Register(compositor); err != nil {
		compositor.Release()
		return nil, err
	}

	camConfig := camera.DefaultConfig()
	camConfig.Width = req.Width
	camConfig.Height = req.Height
	return &RenderingPipeline{
		Pipeline:   p,
		Compositor: compositor,
		Camera:     camera.New(camConfig),
	}, nil
}

// handleRenderingEvents streams every pass, then reports the outcome
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan SSEEvent,
	passChan <-chan renderer.PassResult, errChan <-chan error, p *pipeline.Pipeline, startTime time.Time) {

	for passResult := range passChan {
		if !s.handlePassComplete(ctx, sseEventChan, passResult, p, startTime) {
			return
		}
	}
	if err := <-errChan; err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// handlePassComplete encodes and sends one pass; it returns false once the
// client is gone
func (s *Server) handlePassComplete(ctx context.Context, sseEventChan chan SSEEvent, passResult renderer.PassResult, p *pipeline.Pipeline, startTime time.Time) bool {
	imageData, err := s.imageToBase64PNG(passResult.Image)
	if err != nil {
		log.Printf("Error encoding pass image: %v", err)
		return true
	}

	update := PassUpdate{
		Repetition:      passResult.Repetition,
		RepetitionLevel: passResult.Stats.RepetitionLevel,
		ImageData:       imageData,
		ElapsedMs:       time.Since(startTime).Milliseconds(),
		Engines:         passResult.Stats.Engines,
		ActiveEngines:   passResult.Stats.ActiveEngines,
		SkippedEngines:  passResult.Stats.SkippedEngines,
		DisabledEngines: passResult.Stats.DisabledEngines,
		PrimitiveCount:  p.Object().NumPrimitives(),
		IsComplete:      passResult.IsLast,
	}
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("Error marshaling pass update: %v", err)
		return true
	}

	select {
	case sseEventChan <- SSEEvent{Type: "pass", Data: string(data)}:
		return true
	case <-ctx.Done():
		return false
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
