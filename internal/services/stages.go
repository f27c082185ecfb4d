package services

// Pipeline stage names. They label errors, log fields, lock files and run history.
const (
	StageFrames    = "frames"
	StageKeypoints = "keypoints"
	StageVerify    = "verify"
)

// Stages lists the pipeline stages in execution order.
func Stages() []string {
	return []string{StageFrames, StageKeypoints, StageVerify}
}
