package keypoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"signprep/internal/fileutil"
	"signprep/internal/pose"
)

// Plausible ranges for detected landmarks. Values outside are reported as
// anomalies, never as errors: models legitimately place occluded points a
// little outside the frame.
const (
	coordMin = -0.5
	coordMax = 1.5
)

// Anomaly is a detected landmark value outside its plausible range.
type Anomaly struct {
	FrameIndex int     `json:"frame_index"`
	Landmark   string  `json:"landmark"`
	Field      string  `json:"field"`
	Value      float32 `json:"value"`
}

// Report is the inspection result for one keypoint output directory.
type Report struct {
	Key        string    `json:"key"`
	Dir        string    `json:"dir"`
	NPYFrames  int       `json:"npy_frames"`
	JSONFrames int       `json:"json_frames"`
	JPEGFrames int       `json:"jpeg_frames"`
	Detected   int       `json:"detected"`
	Errors     []string  `json:"errors,omitempty"`
	Anomalies  []Anomaly `json:"anomalies,omitempty"`
}

// OK reports whether the output passed every consistency check.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Inspect checks every <category>/<video> directory under keypointsRoot
// against its frame directory under framesRoot.
func Inspect(keypointsRoot, framesRoot string) ([]Report, error) {
	matches, err := filepath.Glob(filepath.Join(keypointsRoot, "*", "*"))
	if err != nil {
		return nil, fmt.Errorf("discover keypoint directories: %w", err)
	}
	sort.Strings(matches)
	var reports []Report
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		category := filepath.Base(filepath.Dir(match))
		name := filepath.Base(match)
		reports = append(reports, InspectDir(match, filepath.Join(framesRoot, category, name)))
	}
	return reports, nil
}

// InspectDir checks one output directory against its frame directory.
func InspectDir(outDir, frameDir string) Report {
	report := Report{
		Key: filepath.Base(filepath.Dir(outDir)) + "/" + filepath.Base(outDir),
		Dir: outDir,
	}

	values, ok := readNPYValues(&report, filepath.Join(outDir, NPYFile))
	frames, jsonOK := readFrames(&report, filepath.Join(outDir, JSONFile))

	jpegs, err := fileutil.ListByExt(frameDir, "jpg")
	switch {
	case err != nil:
		report.fail("list frames: %v", err)
	case len(jpegs) == 0:
		report.fail("frame directory %s has no JPEGs", frameDir)
	}
	report.JPEGFrames = len(jpegs)

	if ok && report.NPYFrames != report.JPEGFrames {
		report.fail("npy has %d frames but %d JPEGs exist", report.NPYFrames, report.JPEGFrames)
	}
	if jsonOK && report.JSONFrames != report.JPEGFrames {
		report.fail("json has %d frames but %d JPEGs exist", report.JSONFrames, report.JPEGFrames)
	}
	if !ok || !jsonOK || report.NPYFrames != report.JSONFrames {
		if ok && jsonOK {
			report.fail("npy has %d frames but json has %d", report.NPYFrames, report.JSONFrames)
		}
		return report
	}

	const stride = pose.NumLandmarks * pose.NumValues
	for i, frame := range frames {
		if frame.FrameIndex != i {
			report.fail("entry %d has frame_index %d", i, frame.FrameIndex)
		}
		if i < len(jpegs) && frame.Filename != filepath.Base(jpegs[i]) {
			report.fail("entry %d names %s but JPEG %d is %s", i, frame.Filename, i, filepath.Base(jpegs[i]))
		}
		set, _ := pose.LandmarkSetFromValues(values[i*stride : (i+1)*stride])
		if !frame.Detected {
			if !set.IsZero() {
				report.fail("frame %d is undetected but its npy block is not all zero", i)
			}
			if frame.Keypoints != nil {
				report.fail("frame %d is undetected but has keypoints", i)
			}
			continue
		}
		report.Detected++
		if frame.Keypoints == nil {
			report.fail("frame %d is detected but has no keypoints", i)
			continue
		}
		if pose.LandmarkSet(*frame.Keypoints) != set {
			report.fail("frame %d keypoints differ between json and npy", i)
		}
		report.Anomalies = append(report.Anomalies, rangeAnomalies(i, set)...)
	}
	return report
}

func rangeAnomalies(index int, set pose.LandmarkSet) []Anomaly {
	var out []Anomaly
	for j, lm := range set {
		name := pose.LandmarkNames[j]
		if lm.X < coordMin || lm.X > coordMax {
			out = append(out, Anomaly{FrameIndex: index, Landmark: name, Field: "x", Value: lm.X})
		}
		if lm.Y < coordMin || lm.Y > coordMax {
			out = append(out, Anomaly{FrameIndex: index, Landmark: name, Field: "y", Value: lm.Y})
		}
		if lm.Visibility < 0 || lm.Visibility > 1 {
			out = append(out, Anomaly{FrameIndex: index, Landmark: name, Field: "visibility", Value: lm.Visibility})
		}
	}
	return out
}

func readNPYValues(report *Report, path string) ([]float32, bool) {
	f, err := os.Open(path)
	if err != nil {
		report.fail("open %s: %v", NPYFile, err)
		return nil, false
	}
	defer f.Close()
	shape, values, err := ReadNPY(f)
	if err != nil {
		report.fail("read %s: %v", NPYFile, err)
		return nil, false
	}
	if len(shape) != 3 || shape[1] != pose.NumLandmarks || shape[2] != pose.NumValues {
		report.fail("%s has shape %v, want (N, %d, %d)", NPYFile, shape, pose.NumLandmarks, pose.NumValues)
		return nil, false
	}
	report.NPYFrames = shape[0]
	return values, true
}

func readFrames(report *Report, path string) ([]FrameRecord, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.fail("read %s: %v", JSONFile, err)
		return nil, false
	}
	var frames []FrameRecord
	if err := json.Unmarshal(data, &frames); err != nil {
		report.fail("decode %s: %v", JSONFile, err)
		return nil, false
	}
	report.JSONFrames = len(frames)
	return frames, true
}
