//go:build gocv

package main

import _ "github.com/ironsheep/image-search-mcp/internal/match/cvmatch" // registers the "opencv" matcher
