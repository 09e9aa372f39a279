// Package service runs template searches on behalf of the transports.
//
// Every transport (line protocol, MCP, HTTP) builds a Request and calls
// Service.Search. The service decodes the inputs, applies configured
// defaults, runs the match pipeline, and takes care of logging, metrics and
// optional debug dumps. It keeps no per-request state.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ironsheep/image-search-mcp/internal/config"
	"github.com/ironsheep/image-search-mcp/internal/imaging"
	"github.com/ironsheep/image-search-mcp/internal/match"
	"github.com/ironsheep/image-search-mcp/internal/metrics"
)

// ErrMissingImage is returned when a request lacks the scene or template.
var ErrMissingImage = errors.New("service: missing image")

// Input is one image supplied with a request. The first non-empty field of
// Image, Data and Base64 is used.
type Input struct {
	Image  image.Image
	Data   []byte
	Base64 string
}

// IsZero reports whether no image was supplied.
func (in Input) IsZero() bool {
	return in.Image == nil && len(in.Data) == 0 && in.Base64 == ""
}

func (in Input) decode(source string) (image.Image, error) {
	switch {
	case in.Image != nil:
		return in.Image, nil
	case len(in.Data) > 0:
		return imaging.Decode(source, in.Data)
	case in.Base64 != "":
		return imaging.DecodeBase64(source, in.Base64)
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingImage, source)
}

// Request describes one search. Nil or zero tuning fields fall back to the
// configured defaults.
type Request struct {
	// ID correlates log lines and debug dumps; generated when empty.
	ID string
	// Transport labels metrics and logs ("lines", "mcp", "http").
	Transport string

	Scene    Input
	Template Input

	Threshold    *float64
	Levels       int
	IoUThreshold *float64

	// Canny matches edge maps of both images instead of raw pixels.
	Canny bool
}

// Response is the outcome of a successful search.
type Response struct {
	RequestID string         `json:"request_id"`
	Results   []match.Result `json:"results"`
	// Boxes are the level-0 boxes behind Results, in the same order.
	Boxes          []match.Box   `json:"boxes"`
	Candidates     int           `json:"candidates"`
	LevelsSearched int           `json:"levels_searched"`
	LevelsSkipped  int           `json:"levels_skipped"`
	Elapsed        time.Duration `json:"-"`

	scene image.Image
}

// Marks converts the response into annotation marks.
func (r *Response) Marks() []imaging.Mark {
	marks := make([]imaging.Mark, len(r.Boxes))
	for i, b := range r.Boxes {
		marks[i] = imaging.Mark{
			Rect:       image.Rect(b.X1, b.Y1, b.X2, b.Y2),
			Confidence: r.Results[i].Confidence,
		}
	}
	return marks
}

// Service runs searches with a fixed configuration.
type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	matcher match.Matcher
	now     func() time.Time
}

// New creates a Service. A nil logger logs nowhere; nil metrics disables
// recording. The matcher named by cfg.Search.Matcher must be registered.
func New(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	matcher, err := match.NewMatcher(cfg.Search.Matcher)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, log: log, metrics: m, matcher: matcher, now: time.Now}, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// Options resolves the match options for req.
func (s *Service) Options(req Request) match.Options {
	opts := match.Options{
		Threshold:    s.cfg.Search.Threshold,
		Levels:       s.cfg.Search.Levels,
		IoUThreshold: s.cfg.Search.IoUThreshold,
		Matcher:      s.matcher,
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.Levels > 0 {
		opts.Levels = min(req.Levels, match.MaxLevels)
	}
	if req.IoUThreshold != nil {
		opts.IoUThreshold = *req.IoUThreshold
	}
	return opts
}

// Search decodes the request images and locates the template in the scene.
//
// Decode failures are *imaging.ImageDecodeError; a missing image is
// ErrMissingImage. A template that fits no pyramid level is not an error:
// the response simply has no results.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := s.now()

	resp, err := s.search(ctx, req)
	elapsed := s.now().Sub(start)

	log := s.log.With(
		zap.String("request_id", req.ID),
		zap.String("transport", req.Transport),
		zap.Duration("duration", elapsed),
	)
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.ObserveSearch(req.Transport, elapsed, 0, 0, err)
		}
		return nil, err
	}
	resp.Elapsed = elapsed

	b := resp.scene.Bounds()
	log.Info("search finished",
		zap.Int("scene_width", b.Dx()),
		zap.Int("scene_height", b.Dy()),
		zap.Bool("canny", req.Canny),
		zap.Int("levels_searched", resp.LevelsSearched),
		zap.Int("candidates", resp.Candidates),
		zap.Int("results", len(resp.Results)),
	)
	if s.metrics != nil {
		s.metrics.ObserveSearch(req.Transport, elapsed, resp.Candidates, len(resp.Results), nil)
	}
	return resp, nil
}

func (s *Service) search(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Scene.IsZero() || req.Template.IsZero() {
		return nil, ErrMissingImage
	}

	scene, err := req.Scene.decode("scene")
	if err != nil {
		return nil, err
	}
	tmpl, err := req.Template.decode("template")
	if err != nil {
		return nil, err
	}

	sceneRaster, tmplRaster := s.rasters(scene, tmpl, req.Canny)
	results, stats, err := match.FindWithStats(sceneRaster, tmplRaster, s.Options(req))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.ID, err)
	}

	resp := &Response{
		RequestID:      req.ID,
		Results:        results,
		Boxes:          stats.Boxes,
		Candidates:     stats.Candidates,
		LevelsSearched: stats.LevelsSearched,
		LevelsSkipped:  stats.LevelsSkipped,
		scene:          scene,
	}
	if resp.Boxes == nil {
		resp.Boxes = []match.Box{}
	}

	if s.cfg.Debug.Dir != "" {
		if err := s.dump(req.ID, scene, tmpl, resp); err != nil {
			s.log.Warn("debug dump failed", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	return resp, nil
}

// rasters converts both images, through edge maps in canny mode.
func (s *Service) rasters(scene, tmpl image.Image, canny bool) (*match.Raster, *match.Raster) {
	if canny {
		low, high := s.cfg.Canny.Low, s.cfg.Canny.High
		return match.FromImage(imaging.EdgeMap(scene, low, high)),
			match.FromImage(imaging.EdgeMap(tmpl, low, high))
	}
	return match.FromImage(scene), match.FromImage(tmpl)
}

// AnnotateResponse is a search response plus the annotated scene.
type AnnotateResponse struct {
	*Response
	Image       *image.RGBA `json:"-"`
	ImageBase64 string      `json:"image_base64"`
	MimeType    string      `json:"mime_type"`
}

// Annotate runs Search and draws the surviving boxes on the original scene.
func (s *Service) Annotate(ctx context.Context, req Request, opts imaging.AnnotateOptions) (*AnnotateResponse, error) {
	resp, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	annotated, err := imaging.Annotate(resp.scene, resp.Marks(), opts)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNGBase64(annotated)
	if err != nil {
		return nil, err
	}
	return &AnnotateResponse{
		Response:    resp,
		Image:       annotated,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}
