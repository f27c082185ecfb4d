package logging

import "strings"

// ProgressSampler thins per-frame progress into log-sized events. It emits
// when the item being processed changes or when completion crosses a bucket
// boundary (default 10%).
type ProgressSampler struct {
	bucketSize float64
	lastItem   string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket size in percent.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress for item at done/total deserves a log
// line. A non-positive total means the amount of work is unknown, in which
// case only item changes are reported.
func (s *ProgressSampler) ShouldLog(item string, done, total int) bool {
	if s == nil {
		return true
	}
	item = strings.TrimSpace(item)
	emit := false
	if item != "" && item != s.lastItem {
		s.lastItem = item
		s.lastBucket = -1
		emit = true
	}
	if total <= 0 {
		return emit
	}
	percent := Percent(done, total)
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state between runs.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastItem = ""
	s.lastBucket = -1
}

// Percent returns done/total as a percentage clamped to [0, 100].
func Percent(done, total int) float64 {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return float64(done) * 100 / float64(total)
}
