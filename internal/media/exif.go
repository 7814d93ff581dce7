package media

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageMeta is what a reviewer needs to tell two copies of a photo apart:
// size, capture time, camera, and whether software touched the file.
type ImageMeta struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	TakenAt      *time.Time `json:"taken_at,omitempty"`
	CameraMake   string     `json:"camera_make,omitempty"`
	CameraModel  string     `json:"camera_model,omitempty"`
	LensModel    string     `json:"lens_model,omitempty"`
	Software     string     `json:"software,omitempty"`
	Orientation  string     `json:"orientation,omitempty"`
	ISO          int        `json:"iso,omitempty"`
	ExposureTime string     `json:"exposure_time,omitempty"`
	GPSLat       *float64   `json:"gps_lat,omitempty"`
	GPSLon       *float64   `json:"gps_lon,omitempty"`
}

// ExtractImageMeta reads the image header and any EXIF block at path.
// Missing or malformed metadata yields zero fields, never an error.
func ExtractImageMeta(path string) ImageMeta {
	var meta ImageMeta
	if w, h, ok := Dimensions(path); ok {
		meta.Width, meta.Height = w, h
	}

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return meta
	}

	for field, dst := range map[exif.FieldName]*string{
		exif.Make:      &meta.CameraMake,
		exif.Model:     &meta.CameraModel,
		exif.LensModel: &meta.LensModel,
		exif.Software:  &meta.Software,
	} {
		*dst = exifString(x, field)
	}
	if v := exifString(x, exif.Orientation); v != "" {
		meta.Orientation = orientationLabel(v)
	}
	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = &t
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.ISO = v
		}
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			meta.ExposureTime = fmt.Sprintf("%d/%d s", num, den)
			if num == 1 {
				meta.ExposureTime = fmt.Sprintf("1/%d s", den)
			}
		}
	}
	if lat, lon, err := x.LatLong(); err == nil {
		meta.GPSLat, meta.GPSLon = &lat, &lon
	}
	return meta
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		// Numeric tags such as Orientation.
		if n, ierr := tag.Int(0); ierr == nil {
			return fmt.Sprint(n)
		}
		return ""
	}
	return strings.TrimSpace(s)
}

var orientations = map[string]string{
	"1": "Normal",
	"2": "Mirrored horizontal",
	"3": "Rotated 180°",
	"4": "Mirrored vertical",
	"5": "Mirrored horizontal, rotated 90° CCW",
	"6": "Rotated 90° CW",
	"7": "Mirrored horizontal, rotated 90° CW",
	"8": "Rotated 90° CCW",
}

func orientationLabel(v string) string {
	if label, ok := orientations[v]; ok {
		return label
	}
	return v
}
