// Package lines serves searches over a line-oriented stdio protocol.
//
// Each request is three lines:
//
//	<scene image, base64>
//	<template image, base64>
//	<threshold, decimal>
//
// optionally followed by a fourth line "true" or "false" selecting canny
// mode. Each request gets exactly one response line: a JSON array of
// {"point":[x,y],"confidence":c} objects, or {"error":"..."} when the request
// failed. The loop ends cleanly at EOF.
package lines

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ironsheep/image-search-mcp/internal/match"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// maxLineBytes bounds one base64 image line.
const maxLineBytes = 64 * 1024 * 1024

// Searcher runs one search. *service.Service implements it.
type Searcher interface {
	Search(ctx context.Context, req service.Request) (*service.Response, error)
}

// Options controls protocol framing.
type Options struct {
	// CannyLine makes the fourth line mandatory. Without it requests are
	// three lines long and one "true"/"false" line directly after a request
	// is skipped, so four-line clients still work with canny mode ignored.
	// Any other line, blank included, starts the next request.
	CannyLine bool
}

// Server runs the request loop.
type Server struct {
	searcher Searcher
	log      *zap.Logger
	opts     Options
}

// New creates a Server. A nil logger logs nowhere.
func New(searcher Searcher, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{searcher: searcher, log: log, opts: opts}
}

type errorLine struct {
	Error string `json:"error"`
}

// request is one framed request before decoding.
type request struct {
	scene, template string
	threshold       float64
	canny           bool
}

// Serve reads requests from r and writes responses to w until EOF, a read
// error, or ctx is done. A truncated final request is reported as
// io.ErrUnexpectedEOF after its error line is written.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)
	out := bufio.NewWriter(w)
	fr := &framer{scanner: scanner, cannyLine: s.opts.CannyLine}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := fr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if writeErr := s.writeLine(out, errorLine{Error: err.Error()}); writeErr != nil {
				return writeErr
			}
			if isFatal(err) {
				return err
			}
			continue
		}

		results, err := s.handle(ctx, req)
		var line any = results
		if err != nil {
			line = errorLine{Error: err.Error()}
		}
		if err := s.writeLine(out, line); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, req request) ([]match.Result, error) {
	threshold := req.threshold
	resp, err := s.searcher.Search(ctx, service.Request{
		Transport: "lines",
		Scene:     service.Input{Base64: req.scene},
		Template:  service.Input{Base64: req.template},
		Threshold: &threshold,
		Canny:     req.canny,
	})
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []match.Result{}, nil
	}
	return resp.Results, nil
}

func (s *Server) writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return w.Flush()
}

// protocolError is a malformed request; the loop continues after it.
type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }

func isFatal(err error) bool {
	_, ok := err.(*protocolError)
	return !ok
}

// framer splits the input stream into requests.
type framer struct {
	scanner   *bufio.Scanner
	cannyLine bool
	// framed is set once the three lines of a request have been read, so
	// the next line may be a stray canny flag.
	framed bool
}

// line returns the next line without its trailing CR.
func (f *framer) line() (string, error) {
	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return "", fmt.Errorf("read request: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimRight(f.scanner.Text(), "\r"), nil
}

func (f *framer) next() (request, error) {
	var req request

	scene, err := f.line()
	if err == nil && f.framed && !f.cannyLine && isBool(scene) {
		scene, err = f.line()
	}
	f.framed = false
	if err != nil {
		return req, err
	}

	template, err := f.line()
	if err != nil {
		return req, truncated(err)
	}
	thresholdText, err := f.line()
	if err != nil {
		return req, truncated(err)
	}
	f.framed = true

	req.scene, req.template = scene, template
	if f.cannyLine {
		flag, err := f.line()
		if err != nil {
			return req, truncated(err)
		}
		if !isBool(flag) {
			return req, &protocolError{msg: fmt.Sprintf("invalid canny flag %q: want true or false", flag)}
		}
		req.canny = flag == "true"
	}

	req.threshold, err = strconv.ParseFloat(strings.TrimSpace(thresholdText), 64)
	if err != nil {
		return req, &protocolError{msg: fmt.Sprintf("invalid threshold %q", thresholdText)}
	}
	return req, nil
}

func isBool(s string) bool { return s == "true" || s == "false" }

func truncated(err error) error {
	if err == io.EOF {
		return fmt.Errorf("truncated request: %w", io.ErrUnexpectedEOF)
	}
	return err
}
