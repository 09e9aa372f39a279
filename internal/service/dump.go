package service

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/ironsheep/image-search-mcp/internal/imaging"
)

// dumpTimeFormat names dump files so they sort chronologically.
const dumpTimeFormat = "2006-01-02_15-04-05"

// dump writes the scene, the template and the annotated scene of one
// request to the debug directory as
// <dir>/<time>_<request id>_{scene,template,annotated}.png.
func (s *Service) dump(id string, scene, tmpl image.Image, resp *Response) error {
	dir := s.cfg.Debug.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}

	annotated, err := imaging.Annotate(scene, resp.Marks(), imaging.AnnotateOptions{Thickness: 2, Labels: true})
	if err != nil {
		return err
	}

	prefix := filepath.Join(dir, fmt.Sprintf("%s_%s", s.now().Format(dumpTimeFormat), id))
	for suffix, img := range map[string]image.Image{
		"scene":     scene,
		"template":  tmpl,
		"annotated": annotated,
	} {
		if err := imaging.SavePNG(prefix+"_"+suffix+".png", img); err != nil {
			return fmt.Errorf("write debug %s: %w", suffix, err)
		}
	}
	return nil
}
