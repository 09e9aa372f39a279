package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/image-search-mcp/internal/imaging"
	"github.com/ironsheep/image-search-mcp/internal/match"
	"github.com/ironsheep/image-search-mcp/internal/service"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_search").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache or decodes inline base64 as needed
//  4. Calls the service or imaging function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case "image_search":
		return s.handleImageSearch(ctx, args)
	case "image_annotate_matches":
		return s.handleImageAnnotateMatches(ctx, args)
	case "image_pyramid_levels":
		return s.handleImagePyramidLevels(args)
	case "image_crop_template":
		return s.handleImageCropTemplate(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_load":
		return s.handleImageLoad(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Search Handlers ===

type imagePairArgs struct {
	ScenePath      string `json:"scene_path"`
	SceneBase64    string `json:"scene_base64"`
	TemplatePath   string `json:"template_path"`
	TemplateBase64 string `json:"template_base64"`
}

// inputs resolves the scene and template. Paths go through the cache so
// repeated searches on one screenshot decode it once.
func (s *Server) inputs(a imagePairArgs) (scene, template service.Input, err error) {
	scene, err = s.input(a.ScenePath, a.SceneBase64)
	if err != nil {
		return scene, template, err
	}
	template, err = s.input(a.TemplatePath, a.TemplateBase64)
	return scene, template, err
}

func (s *Server) input(path, b64 string) (service.Input, error) {
	if path == "" {
		return service.Input{Base64: b64}, nil
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return service.Input{}, err
	}
	return service.Input{Image: img}, nil
}

type imageSearchArgs struct {
	imagePairArgs
	Threshold    *float64 `json:"threshold"`
	Levels       int      `json:"levels"`
	IoUThreshold *float64 `json:"iou_threshold"`
	Canny        bool     `json:"canny"`
}

func (a imageSearchArgs) request(scene, template service.Input) service.Request {
	return service.Request{
		Transport:    "mcp",
		Scene:        scene,
		Template:     template,
		Threshold:    a.Threshold,
		Levels:       a.Levels,
		IoUThreshold: a.IoUThreshold,
		Canny:        a.Canny,
	}
}

func (s *Server) handleImageSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scene, template, err := s.inputs(a.imagePairArgs)
	if err != nil {
		return nil, err
	}
	return s.svc.Search(ctx, a.request(scene, template))
}

type imageAnnotateArgs struct {
	imageSearchArgs
	Color      string `json:"color"`
	Thickness  int    `json:"thickness"`
	Labels     *bool  `json:"labels"`
	OutputPath string `json:"output_path"`
}

type annotateResult struct {
	*service.AnnotateResponse
	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handleImageAnnotateMatches(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageAnnotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Thickness == 0 {
		a.Thickness = 2
	}
	labels := true
	if a.Labels != nil {
		labels = *a.Labels
	}

	scene, template, err := s.inputs(a.imagePairArgs)
	if err != nil {
		return nil, err
	}
	resp, err := s.svc.Annotate(ctx, a.request(scene, template), imaging.AnnotateOptions{
		Color:     a.Color,
		Thickness: a.Thickness,
		Labels:    labels,
	})
	if err != nil {
		return nil, err
	}

	if a.OutputPath != "" {
		if err := imaging.SavePNG(a.OutputPath, resp.Image); err != nil {
			return nil, err
		}
	}
	return annotateResult{AnnotateResponse: resp, OutputPath: a.OutputPath}, nil
}

type imagePyramidArgs struct {
	imagePairArgs
	Levels int `json:"levels"`
}

// PyramidLevel describes one level of a scene/template pyramid pair.
type PyramidLevel struct {
	Level      int     `json:"level"`
	Scale      int     `json:"scale"`
	Scene      [2]int  `json:"scene"`
	Template   *[2]int `json:"template,omitempty"`
	Searchable bool    `json:"searchable"`
}

type pyramidResult struct {
	Levels []PyramidLevel `json:"levels"`
}

func (s *Server) handleImagePyramidLevels(args json.RawMessage) (interface{}, error) {
	var a imagePyramidArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Levels <= 0 {
		a.Levels = s.svc.Config().Search.Levels
	}
	a.Levels = min(a.Levels, match.MaxLevels)

	scene, err := s.dims(a.ScenePath, a.SceneBase64, "scene")
	if err != nil {
		return nil, err
	}
	var template [2]int
	hasTemplate := a.TemplatePath != "" || a.TemplateBase64 != ""
	if hasTemplate {
		if template, err = s.dims(a.TemplatePath, a.TemplateBase64, "template"); err != nil {
			return nil, err
		}
	}

	sceneDims := match.LevelDims(scene[0], scene[1], a.Levels)
	tmplDims := match.LevelDims(template[0], template[1], a.Levels)
	result := pyramidResult{Levels: make([]PyramidLevel, len(sceneDims))}
	for i := range sceneDims {
		lvl := PyramidLevel{Level: i, Scale: 1 << i, Scene: sceneDims[i]}
		if hasTemplate {
			lvl.Template = &tmplDims[i]
			lvl.Searchable = tmplDims[i][0] > 0 && tmplDims[i][1] > 0 &&
				tmplDims[i][0] <= sceneDims[i][0] && tmplDims[i][1] <= sceneDims[i][1]
		}
		result.Levels[i] = lvl
	}
	return result, nil
}

func (s *Server) dims(path, b64, source string) ([2]int, error) {
	in, err := s.input(path, b64)
	if err != nil {
		return [2]int{}, err
	}
	img := in.Image
	if img == nil {
		if in.Base64 == "" {
			return [2]int{}, fmt.Errorf("%w: %s", service.ErrMissingImage, source)
		}
		if img, err = imaging.DecodeBase64(source, in.Base64); err != nil {
			return [2]int{}, err
		}
	}
	b := img.Bounds()
	return [2]int{b.Dx(), b.Dy()}, nil
}

// === Image File Handlers ===

type imageCropArgs struct {
	Path       string  `json:"path"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Scale      float64 `json:"scale"`
	OutputPath string  `json:"output_path"`
}

type cropResult struct {
	*imaging.CropResult
	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handleImageCropTemplate(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	crop, err := imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
	if err != nil {
		return nil, err
	}
	if a.OutputPath != "" {
		if err := imaging.SavePNG(a.OutputPath, crop.Image); err != nil {
			return nil, err
		}
		// The file may be searched for next; drop any stale cached copy.
		s.cache.Evict(a.OutputPath)
	}
	return cropResult{CropResult: crop, OutputPath: a.OutputPath}, nil
}

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
