package rewrite

import "github.com/jonesrussell/finblog/internal/domain"

// InferResumePoint picks the step to restart from using only persisted
// output. A draft whose editor output was lost but whose stage still reads
// EDITOR_DONE resumes at the columnist with the raw content as input.
func InferResumePoint(d *domain.Draft) domain.Step {
	switch {
	case d.HasColumnistOutput():
		return domain.StepSave
	case d.HasEditorOutput(), d.Stage == domain.StageEditorDone:
		return domain.StepColumnist
	default:
		return domain.StepEditor
	}
}

// stepsFrom lists the remaining steps starting at step.
func stepsFrom(step domain.Step) []domain.Step {
	all := []domain.Step{domain.StepEditor, domain.StepColumnist, domain.StepSave}
	for i, s := range all {
		if s == step {
			return all[i:]
		}
	}
	return nil
}

// canRunStep reports whether d is in a state step accepts.
func canRunStep(d *domain.Draft, step domain.Step) bool {
	switch step {
	case domain.StepEditor:
		return d.Stage == domain.StageRaw || d.Stage == domain.StageFailed
	case domain.StepColumnist:
		return d.Stage == domain.StageEditorDone ||
			(d.Stage == domain.StageFailed && d.HasEditorOutput())
	case domain.StepSave:
		return d.HasColumnistOutput() &&
			(d.Stage == domain.StageColumnistDone || d.Stage == domain.StageFailed)
	default:
		return false
	}
}
