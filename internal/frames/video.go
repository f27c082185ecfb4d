package frames

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Video is a source video discovered under the videos root.
type Video struct {
	Path     string
	Category string
	Stem     string
}

// Key returns the <category>/<stem> label shared by every stage's output tree.
func (v Video) Key() string {
	return v.Category + "/" + v.Stem
}

// OutputDir returns the frame directory for the video under framesRoot.
func (v Video) OutputDir(framesRoot string) string {
	return filepath.Join(framesRoot, v.Category, v.Stem)
}

// Rate is a sampling rate expressed as frames per interval of seconds.
type Rate struct {
	Frames  int
	Seconds int
}

// DefaultRate samples 12 frames every 4 seconds.
var DefaultRate = Rate{Frames: 12, Seconds: 4}

// FPS returns the rate as frames per second.
func (r Rate) FPS() float64 {
	if r.Seconds <= 0 {
		return 0
	}
	return float64(r.Frames) / float64(r.Seconds)
}

// String renders the rate in ffmpeg's fps filter notation.
func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Frames, r.Seconds)
}

// Discover walks root recursively and returns every *.mp4 file in walk
// order. The match is case-sensitive. A missing root yields no videos.
func Discover(root string) ([]Video, error) {
	var videos []Video
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".mp4" {
			return nil
		}
		videos = append(videos, Video{
			Path:     path,
			Category: filepath.Base(filepath.Dir(path)),
			Stem:     strings.TrimSuffix(filepath.Base(path), ".mp4"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover videos under %s: %w", root, err)
	}
	return videos, nil
}
