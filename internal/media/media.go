package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"mime"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodable lists the extensions with a registered pure-Go decoder.
var decodable = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// ContentType returns the MIME content type for the file based on its extension.
// Returns "application/octet-stream" for unknown types.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		switch ext {
		case ".webp":
			return "image/webp"
		case ".tif", ".tiff":
			return "image/tiff"
		case ".bmp":
			return "image/bmp"
		}
		return "application/octet-stream"
	}
	return ct
}

// Dimensions reads the pixel size from the image header without decoding
// the whole image. ok is false for unsupported or unreadable files.
func Dimensions(path string) (width, height int, ok bool) {
	if !decodable[strings.ToLower(filepath.Ext(path))] {
		return 0, 0, false
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// Thumbnail generates a JPEG thumbnail for the image at path, resized to fit
// within width x height while preserving the aspect ratio.
// Returns nil, nil for formats without a decoder or undecodable files.
// The output is always JPEG at quality 75.
func Thumbnail(path string, width, height int) ([]byte, error) {
	if !decodable[strings.ToLower(filepath.Ext(path))] {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		// Treat decode errors as "can't thumbnail" rather than hard errors.
		return nil, nil
	}

	thumb := resizeFit(src, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resizeFit scales src to fit within the dstW x dstH bounding box,
// preserving the aspect ratio, using BiLinear interpolation.
func resizeFit(src image.Image, dstW, dstH int) image.Image {
	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	if srcW == 0 || srcH == 0 {
		return src
	}

	scale := min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))

	// No upscaling — if the image already fits, return as-is.
	if scale >= 1.0 {
		return src
	}

	newW := max(int(float64(srcW)*scale), 1)
	newH := max(int(float64(srcH)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, srcBounds, draw.Over, nil)
	return dst
}
