package keypoints

import (
	"bytes"
	"encoding/json"
	"fmt"

	"signprep/internal/pose"
)

// File names written into every keypoint output directory.
const (
	NPYFile  = "keypoints.npy"
	JSONFile = "keypoints.json"
)

// FrameRecord is one entry of keypoints.json.
type FrameRecord struct {
	FrameIndex int             `json:"frame_index"`
	Filename   string          `json:"filename"`
	Detected   bool            `json:"detected"`
	Keypoints  *NamedLandmarks `json:"keypoints,omitempty"`
}

// NamedLandmarks renders a landmark set as an object keyed by landmark name,
// in model order rather than the alphabetical order maps would produce.
type NamedLandmarks pose.LandmarkSet

// MarshalJSON implements json.Marshaler.
func (n NamedLandmarks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range pose.LandmarkNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(n[i])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Every landmark name must be present.
func (n *NamedLandmarks) UnmarshalJSON(data []byte) error {
	var byName map[string]pose.Landmark
	if err := json.Unmarshal(data, &byName); err != nil {
		return err
	}
	for i, name := range pose.LandmarkNames {
		lm, ok := byName[name]
		if !ok {
			return fmt.Errorf("keypoints: landmark %q missing", name)
		}
		n[i] = lm
	}
	return nil
}

// Record is the full keypoint time series of one video.
type Record struct {
	Frames []FrameRecord
	Values []float32
}

// NewRecord allocates a record for n frames.
func NewRecord(n int) *Record {
	return &Record{
		Frames: make([]FrameRecord, 0, n),
		Values: make([]float32, 0, n*pose.NumLandmarks*pose.NumValues),
	}
}

// Add appends a frame. A nil set is stored as zeros with detected=false.
func (r *Record) Add(filename string, set *pose.LandmarkSet) {
	frame := FrameRecord{
		FrameIndex: len(r.Frames),
		Filename:   filename,
		Detected:   set != nil,
	}
	if set != nil {
		named := NamedLandmarks(*set)
		frame.Keypoints = &named
	}
	values := set.Values()
	r.Values = append(r.Values, values[:]...)
	r.Frames = append(r.Frames, frame)
}

// Shape returns the NPY shape of the record.
func (r *Record) Shape() []int {
	return []int{len(r.Frames), pose.NumLandmarks, pose.NumValues}
}

// Detected counts frames with a pose.
func (r *Record) Detected() int {
	n := 0
	for _, f := range r.Frames {
		if f.Detected {
			n++
		}
	}
	return n
}

// MarshalFrames renders keypoints.json with two-space indentation.
func (r *Record) MarshalFrames() ([]byte, error) {
	frames := r.Frames
	if frames == nil {
		frames = []FrameRecord{}
	}
	data, err := json.MarshalIndent(frames, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
