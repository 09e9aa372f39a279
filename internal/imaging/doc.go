// Package imaging provides the image plumbing around template search:
// decoding inputs, caching files, cutting templates, edge maps for canny
// mode, and annotating matches.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. For regions, (x1,y1) is
// inclusive and (x2,y2) is exclusive. Images returned by this package have
// their origin at (0,0) regardless of the input bounds.
//
// # Formats
//
// Decode accepts PNG, JPEG and GIF (standard library) and BMP, TIFF and WebP
// (golang.org/x/image). EXIF orientation is applied on decode. Outputs are
// always PNG.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and never modify their input images.
package imaging
