package pose

import "math"

// NumLandmarks is the fixed number of body landmarks per frame.
const NumLandmarks = 33

// NumValues is the number of values stored per landmark (x, y, z, visibility).
const NumValues = 4

// LandmarkNames lists the landmarks in model output order.
var LandmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

// Landmark is one body point. X and Y are normalized to the image size, Z is
// a relative depth estimate and Visibility a confidence in [0, 1].
type Landmark struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Z          float32 `json:"z"`
	Visibility float32 `json:"visibility"`
}

// LandmarkSet holds every landmark of one frame in LandmarkNames order.
type LandmarkSet [NumLandmarks]Landmark

// Values flattens the set into 33x4 row-major float32 values.
func (s *LandmarkSet) Values() [NumLandmarks * NumValues]float32 {
	var out [NumLandmarks * NumValues]float32
	if s == nil {
		return out
	}
	for i, lm := range s {
		out[i*NumValues] = lm.X
		out[i*NumValues+1] = lm.Y
		out[i*NumValues+2] = lm.Z
		out[i*NumValues+3] = lm.Visibility
	}
	return out
}

// LandmarkSetFromValues rebuilds a set from 33x4 row-major values.
func LandmarkSetFromValues(values []float32) (LandmarkSet, bool) {
	var set LandmarkSet
	if len(values) != NumLandmarks*NumValues {
		return set, false
	}
	for i := range set {
		set[i] = Landmark{
			X:          values[i*NumValues],
			Y:          values[i*NumValues+1],
			Z:          values[i*NumValues+2],
			Visibility: values[i*NumValues+3],
		}
	}
	return set, true
}

// IsFinite reports whether every value in the set is a finite number.
func (s *LandmarkSet) IsFinite() bool {
	if s == nil {
		return true
	}
	for _, lm := range s {
		for _, v := range [NumValues]float32{lm.X, lm.Y, lm.Z, lm.Visibility} {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}

// IsZero reports whether every value in the set is zero.
func (s *LandmarkSet) IsZero() bool {
	if s == nil {
		return true
	}
	for _, lm := range s {
		if lm != (Landmark{}) {
			return false
		}
	}
	return true
}

func landmarkSetFromRows(rows [][]float64) (LandmarkSet, bool) {
	var set LandmarkSet
	if len(rows) != NumLandmarks {
		return set, false
	}
	for i, row := range rows {
		if len(row) != NumValues {
			return set, false
		}
		set[i] = Landmark{
			X:          float32(row[0]),
			Y:          float32(row[1]),
			Z:          float32(row[2]),
			Visibility: float32(row[3]),
		}
	}
	return set, true
}
