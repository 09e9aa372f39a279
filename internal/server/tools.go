package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// imagePairProps describes a scene and a template, each given by path or
// base64 contents.
func imagePairProps() map[string]interface{} {
	return map[string]interface{}{
		"scene_path":      stringProp("Absolute path to the scene image to search in"),
		"scene_base64":    stringProp("Scene image as base64 (data URLs accepted). Used when scene_path is empty"),
		"template_path":   stringProp("Absolute path to the template image to search for"),
		"template_base64": stringProp("Template image as base64 (data URLs accepted). Used when template_path is empty"),
	}
}

// searchProps adds the search tuning parameters to the image pair.
func searchProps() map[string]interface{} {
	props := imagePairProps()
	props["threshold"] = map[string]interface{}{
		"type":        "number",
		"description": "Minimum correlation score in [-1, 1]. Default from server config (0.8)",
	}
	props["levels"] = map[string]interface{}{
		"type":        "integer",
		"description": "Pyramid levels searched coarse to fine. Default from server config (4)",
		"minimum":     1,
	}
	props["iou_threshold"] = map[string]interface{}{
		"type":        "number",
		"description": "Overlap at or above which detections are merged. Default 0.5",
		"minimum":     0,
		"maximum":     1,
	}
	props["canny"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Match Canny edge maps instead of raw pixels. Default false",
		"default":     false,
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	annotateProps := searchProps()
	annotateProps["color"] = stringProp("Outline color as #RRGGBB or #RRGGBBAA. Default: colored by confidence")
	annotateProps["thickness"] = intProp("Outline width in pixels. Default 2")
	annotateProps["labels"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Draw the confidence above each match. Default true",
		"default":     true,
	}
	annotateProps["output_path"] = stringProp("Optional path to also write the annotated PNG to")

	pyramidProps := imagePairProps()
	pyramidProps["levels"] = intProp("Number of pyramid levels. Default from server config (4)")

	return []Tool{
		{
			Name:        "image_search",
			Description: "Find every occurrence of a template image inside a scene image. Returns the center point and confidence of each match, best first.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": searchProps(),
			},
		},
		{
			Name:        "image_annotate_matches",
			Description: "Run image_search and return the scene with a rectangle drawn around every match, as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": annotateProps,
			},
		},
		{
			Name:        "image_pyramid_levels",
			Description: "Show the size of each pyramid level for a scene and template, and which levels are searchable (template fits inside the scene).",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": pyramidProps,
			},
		},
		{
			Name:        "image_crop_template",
			Description: "Cut a rectangular region out of an image to use as a search template. Returns it as base64-encoded PNG and optionally writes it to a file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the source image"),
					"x1":   intProp("Left edge X coordinate (0-based)"),
					"y1":   intProp("Top edge Y coordinate (0-based)"),
					"x2":   intProp("Right edge X coordinate (exclusive)"),
					"y2":   intProp("Bottom edge Y coordinate (exclusive)"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0; scaled templates no longer match their source exactly",
						"default":     1.0,
					},
					"output_path": stringProp("Optional path to write the template PNG to"),
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_load",
			Description: "Load an image file into the server cache and return its dimensions, format and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
