package pipeline

// Stage is the furthest step a controller has completed.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageLoaded      Stage = "loaded"
	StageProcessed   Stage = "processed"
	StageSaved       Stage = "saved"
	StageCounted     Stage = "counted"
	StageCountsSaved Stage = "counts_saved"
)

var stageOrder = map[Stage]int{
	StageIdle:        0,
	StageLoaded:      1,
	StageProcessed:   2,
	StageSaved:       3,
	StageCounted:     4,
	StageCountsSaved: 5,
}

// AtLeast reports whether s is other or a later stage.
func (s Stage) AtLeast(other Stage) bool {
	return stageOrder[s] >= stageOrder[other]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

func (s Stage) String() string {
	return string(s)
}
