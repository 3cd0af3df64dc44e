package model

// PipelineStage is one named step of the course-generation pipeline.
// The canonical sequence is fixed system-wide; consumers must look stages
// up by ID rather than assume a count or hardcode positions.
type PipelineStage struct {
	ID          string
	Order       int
	Description string
}

// The canonical pipeline. Order is 1-based and matches slice position.
var pipelineStages = []PipelineStage{
	{ID: "planning", Order: 1, Description: "Analyzing employee profile and building the course plan"},
	{ID: "research", Order: 2, Description: "Gathering domain sources and reference material"},
	{ID: "content", Order: 3, Description: "Writing module content"},
	{ID: "quality", Order: 4, Description: "Reviewing content quality and factual accuracy"},
	{ID: "enhancement", Order: 5, Description: "Enriching content with examples and exercises"},
	{ID: "multimedia", Order: 6, Description: "Generating audio and visual assets"},
	{ID: "finalizer", Order: 7, Description: "Assembling and publishing the final course"},
}

var stageIndex = func() map[string]int {
	m := make(map[string]int, len(pipelineStages))
	for i, s := range pipelineStages {
		m[s.ID] = i
	}
	return m
}()

// Stages returns the canonical ordered pipeline. The returned slice is a
// copy; callers may not mutate the pipeline definition.
func Stages() []PipelineStage {
	out := make([]PipelineStage, len(pipelineStages))
	copy(out, pipelineStages)
	return out
}

// NumStages returns the length of the canonical pipeline.
func NumStages() int { return len(pipelineStages) }

// StageByID looks a stage up by its identifier.
func StageByID(id string) (PipelineStage, bool) {
	i, ok := stageIndex[id]
	if !ok {
		return PipelineStage{}, false
	}
	return pipelineStages[i], true
}

// FirstStage returns the first stage of the pipeline.
func FirstStage() PipelineStage { return pipelineStages[0] }

// NextStage returns the stage following the given one, or false when the
// given stage is the last.
func NextStage(id string) (PipelineStage, bool) {
	i, ok := stageIndex[id]
	if !ok || i+1 >= len(pipelineStages) {
		return PipelineStage{}, false
	}
	return pipelineStages[i+1], true
}
