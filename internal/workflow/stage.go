package workflow

// Stage is one of the five sequential phases of a verification session.
type Stage string

const (
	StageDetails  Stage = "details"
	StageDocument Stage = "document"
	StageLiveness Stage = "liveness"
	StageVoice    Stage = "voice"
	StageResult   Stage = "result"
)

var stageOrder = []Stage{StageDetails, StageDocument, StageLiveness, StageVoice, StageResult}

func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage, or s itself for Result.
func (s Stage) Next() Stage {
	i := s.index()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Previous returns the preceding stage. Details and Result have none.
func (s Stage) Previous() (Stage, bool) {
	i := s.index()
	if i <= 0 || s == StageResult {
		return s, false
	}
	return stageOrder[i-1], true
}
