package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ironsheep/image-search-mcp/internal/config"
	"github.com/ironsheep/image-search-mcp/internal/imaging"
	"github.com/ironsheep/image-search-mcp/internal/match"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc, err := service.New(config.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("service.New: %v", err)
	}
	return New(svc, nil, "test")
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// writeTwoSquares writes a 200x200 black scene with 20x20 white squares at
// (50,50) and (150,150), and the square itself, returning both paths.
func writeTwoSquares(t *testing.T) (scenePath, templatePath string) {
	t.Helper()
	scene := solid(200, 200, color.Black)
	square := solid(20, 20, color.White)
	for _, p := range []image.Point{{50, 50}, {150, 150}} {
		draw.Draw(scene, image.Rect(p.X, p.Y, p.X+20, p.Y+20), square, image.Point{}, draw.Src)
	}
	dir := t.TempDir()
	scenePath = filepath.Join(dir, "scene.png")
	templatePath = filepath.Join(dir, "template.png")
	if err := imaging.SavePNG(scenePath, scene); err != nil {
		t.Fatalf("save scene: %v", err)
	}
	if err := imaging.SavePNG(templatePath, square); err != nil {
		t.Fatalf("save template: %v", err)
	}
	return scenePath, templatePath
}

// callTool sends a tools/call request and returns the raw response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeToolResult unwraps the MCP content envelope into v.
func decodeToolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("unmarshal tool result: %v\n%s", err, text)
	}
}

type searchResult struct {
	RequestID string `json:"request_id"`
	Results   []struct {
		Point      [2]float64 `json:"point"`
		Confidence float64    `json:"confidence"`
	} `json:"results"`
	Boxes          []map[string]int `json:"boxes"`
	LevelsSearched int              `json:"levels_searched"`
	ImageBase64    string           `json:"image_base64"`
	MimeType       string           `json:"mime_type"`
	OutputPath     string           `json:"output_path"`
}

func (r searchResult) points() [][2]float64 {
	out := make([][2]float64, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Point
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}

func TestHandleToolsCall_ImageSearch(t *testing.T) {
	s := newTestServer(t)
	scenePath, templatePath := writeTwoSquares(t)

	resp := callTool(t, s, "image_search", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": templatePath,
		"threshold":     0.9,
	})

	var got searchResult
	decodeToolResult(t, resp, &got)

	if got.RequestID == "" {
		t.Error("request_id should be set")
	}
	points := got.points()
	want := [][2]float64{{60, 60}, {160, 160}}
	if len(points) != len(want) {
		t.Fatalf("results: got %v, want %v", points, want)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("result %d: got %v, want %v", i, points[i], want[i])
		}
	}
	if len(got.Boxes) != 2 {
		t.Errorf("boxes: got %d, want 2", len(got.Boxes))
	}
	if s.cache.Len() != 2 {
		t.Errorf("cache: got %d entries, want 2", s.cache.Len())
	}
}

func TestHandleToolsCall_ImageSearchBase64(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)
	tmpl, err := imaging.EncodePNGBase64(solid(20, 20, color.White))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resp := callTool(t, s, "image_search", map[string]interface{}{
		"scene_path":      scenePath,
		"template_base64": "data:image/png;base64," + tmpl,
		"threshold":       0.9,
	})

	var got searchResult
	decodeToolResult(t, resp, &got)
	if len(got.Results) != 2 {
		t.Errorf("results: got %d, want 2", len(got.Results))
	}
}

func TestHandleToolsCall_ImageSearchErrors(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing template", map[string]interface{}{"scene_path": scenePath}},
		{"missing file", map[string]interface{}{"scene_path": "/nonexistent/scene.png", "template_path": scenePath}},
		{"bad base64", map[string]interface{}{"scene_path": scenePath, "template_base64": "!!!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "image_search", tt.args)
			if resp.Error == nil {
				t.Fatal("Expected error")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
			}
		})
	}
}

func TestHandleToolsCall_ImageAnnotateMatches(t *testing.T) {
	s := newTestServer(t)
	scenePath, templatePath := writeTwoSquares(t)
	outPath := filepath.Join(t.TempDir(), "annotated.png")

	resp := callTool(t, s, "image_annotate_matches", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": templatePath,
		"threshold":     0.9,
		"color":         "#FF0000",
		"output_path":   outPath,
	})

	var got searchResult
	decodeToolResult(t, resp, &got)

	if got.MimeType != "image/png" {
		t.Errorf("mime_type: got %s, want image/png", got.MimeType)
	}
	if got.ImageBase64 == "" {
		t.Error("image_base64 should not be empty")
	}
	if got.OutputPath != outPath {
		t.Errorf("output_path: got %s, want %s", got.OutputPath, outPath)
	}
	if len(got.Results) != 2 {
		t.Errorf("results: got %d, want 2", len(got.Results))
	}

	img, err := imaging.DecodeBase64("annotated", got.ImageBase64)
	if err != nil {
		t.Fatalf("decode annotated: %v", err)
	}
	// Default thickness is 2; the outline starts at the box corner.
	r, g, b, _ := img.At(50, 50).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("outline pixel: got (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output file not written: %v", err)
	}
}

func TestHandleToolsCall_ImageAnnotateInvalidColor(t *testing.T) {
	s := newTestServer(t)
	scenePath, templatePath := writeTwoSquares(t)

	resp := callTool(t, s, "image_annotate_matches", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": templatePath,
		"color":         "not-a-color",
	})
	if resp.Error == nil {
		t.Fatal("Expected error for invalid color")
	}
}

func TestHandleToolsCall_ImagePyramidLevels(t *testing.T) {
	s := newTestServer(t)
	scenePath, templatePath := writeTwoSquares(t)

	resp := callTool(t, s, "image_pyramid_levels", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": templatePath,
		"levels":        6,
	})

	var got pyramidResult
	decodeToolResult(t, resp, &got)

	if len(got.Levels) != 6 {
		t.Fatalf("levels: got %d, want 6", len(got.Levels))
	}
	wantScene := [][2]int{{200, 200}, {100, 100}, {50, 50}, {25, 25}, {13, 13}, {7, 7}}
	wantTmpl := [][2]int{{20, 20}, {10, 10}, {5, 5}, {3, 3}, {2, 2}, {1, 1}}
	for i, lvl := range got.Levels {
		if lvl.Level != i || lvl.Scale != 1<<i {
			t.Errorf("level %d: got level=%d scale=%d", i, lvl.Level, lvl.Scale)
		}
		if lvl.Scene != wantScene[i] {
			t.Errorf("level %d scene: got %v, want %v", i, lvl.Scene, wantScene[i])
		}
		if lvl.Template == nil || *lvl.Template != wantTmpl[i] {
			t.Errorf("level %d template: got %v, want %v", i, lvl.Template, wantTmpl[i])
		}
		if !lvl.Searchable {
			t.Errorf("level %d should be searchable", i)
		}
	}
}

func TestHandleToolsCall_ImagePyramidLevels_TemplateTooLarge(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.png")
	templatePath := filepath.Join(dir, "template.png")
	if err := imaging.SavePNG(scenePath, solid(40, 40, color.Black)); err != nil {
		t.Fatal(err)
	}
	if err := imaging.SavePNG(templatePath, solid(50, 10, color.White)); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, s, "image_pyramid_levels", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": templatePath,
	})

	var got pyramidResult
	decodeToolResult(t, resp, &got)

	// Default levels come from the server config.
	if len(got.Levels) != config.DefaultConfig().Search.Levels {
		t.Fatalf("levels: got %d", len(got.Levels))
	}
	for _, lvl := range got.Levels {
		if lvl.Searchable {
			t.Errorf("level %d should not be searchable", lvl.Level)
		}
	}
}

func TestHandleToolsCall_ImagePyramidLevels_SceneOnly(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_pyramid_levels", map[string]interface{}{
		"scene_path": scenePath,
		"levels":     2,
	})

	var got pyramidResult
	decodeToolResult(t, resp, &got)
	if len(got.Levels) != 2 {
		t.Fatalf("levels: got %d, want 2", len(got.Levels))
	}
	if got.Levels[1].Template != nil {
		t.Errorf("template dims should be omitted, got %v", got.Levels[1].Template)
	}
}

func TestHandleToolsCall_ImagePyramidLevels_Capped(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_pyramid_levels", map[string]interface{}{
		"scene_path": scenePath,
		"levels":     int64(1) << 40,
	})

	var got pyramidResult
	decodeToolResult(t, resp, &got)
	if len(got.Levels) != match.MaxLevels {
		t.Fatalf("levels: got %d, want %d", len(got.Levels), match.MaxLevels)
	}
	last := got.Levels[len(got.Levels)-1]
	if last.Scale != 1<<(match.MaxLevels-1) {
		t.Errorf("last scale: got %d, want %d", last.Scale, 1<<(match.MaxLevels-1))
	}
	if last.Scene != [2]int{1, 1} {
		t.Errorf("last scene: got %v, want [1 1]", last.Scene)
	}
}

func TestHandleToolsCall_ImageCropTemplate(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)
	outPath := filepath.Join(t.TempDir(), "crop.png")

	resp := callTool(t, s, "image_crop_template", map[string]interface{}{
		"path":        scenePath,
		"x1":          40,
		"y1":          40,
		"x2":          80,
		"y2":          80,
		"output_path": outPath,
	})

	var got struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ImageBase64 string `json:"image_base64"`
		OutputPath  string `json:"output_path"`
	}
	decodeToolResult(t, resp, &got)

	if got.Width != 40 || got.Height != 40 {
		t.Errorf("size: got %dx%d, want 40x40", got.Width, got.Height)
	}
	if got.ImageBase64 == "" {
		t.Error("image_base64 should not be empty")
	}

	// The written crop finds itself in the scene.
	search := callTool(t, s, "image_search", map[string]interface{}{
		"scene_path":    scenePath,
		"template_path": outPath,
		"threshold":     0.99,
	})
	var found searchResult
	decodeToolResult(t, search, &found)
	if len(found.Results) == 0 {
		t.Fatal("crop not found in its source")
	}
}

func TestHandleToolsCall_ImageCropTemplate_Scaled(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_crop_template", map[string]interface{}{
		"path":  scenePath,
		"x1":    0,
		"y1":    0,
		"x2":    100,
		"y2":    50,
		"scale": 0.5,
	})

	var got struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeToolResult(t, resp, &got)
	if got.Width != 50 || got.Height != 25 {
		t.Errorf("size: got %dx%d, want 50x25", got.Width, got.Height)
	}
}

func TestHandleToolsCall_ImageCropTemplate_OutOfBounds(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_crop_template", map[string]interface{}{
		"path": scenePath,
		"x1":   150,
		"y1":   150,
		"x2":   250,
		"y2":   250,
	})
	if resp.Error == nil {
		t.Fatal("Expected error for out-of-bounds crop")
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": scenePath})

	var got imaging.DimensionsResult
	decodeToolResult(t, resp, &got)
	if got.Width != 200 || got.Height != 200 {
		t.Errorf("dimensions: got %dx%d, want 200x200", got.Width, got.Height)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t)
	scenePath, _ := writeTwoSquares(t)

	resp := callTool(t, s, "image_load", map[string]interface{}{"path": scenePath})

	var got imaging.ImageInfo
	decodeToolResult(t, resp, &got)
	if got.Format != "png" {
		t.Errorf("format: got %s, want png", got.Format)
	}
	if got.FileSizeBytes == 0 {
		t.Error("file_size_bytes should be positive")
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t)

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestMustMarshalJSON(t *testing.T) {
	got := mustMarshalJSON(map[string]int{"a": 1})
	if got != "{\n  \"a\": 1\n}" {
		t.Errorf("got %q", got)
	}
}
