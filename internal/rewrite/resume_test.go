package rewrite_test

import (
	"testing"

	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/rewrite"
)

func TestInferResumePoint(t *testing.T) {
	t.Parallel()

	content := "x"
	empty := ""

	testCases := []struct {
		name  string
		draft domain.Draft
		want  domain.Step
	}{
		{name: "raw", draft: domain.Draft{Stage: domain.StageRaw}, want: domain.StepEditor},
		{name: "failed at editor", draft: domain.Draft{Stage: domain.StageFailed}, want: domain.StepEditor},
		{name: "editor done", draft: domain.Draft{Stage: domain.StageEditorDone, EditorContent: &content}, want: domain.StepColumnist},
		{name: "editor done without content", draft: domain.Draft{Stage: domain.StageEditorDone}, want: domain.StepColumnist},
		{name: "failed with editor output", draft: domain.Draft{Stage: domain.StageFailed, EditorContent: &content}, want: domain.StepColumnist},
		{name: "empty editor output ignored", draft: domain.Draft{Stage: domain.StageFailed, EditorContent: &empty}, want: domain.StepEditor},
		{name: "columnist output", draft: domain.Draft{Stage: domain.StageFailed, EditorContent: &content, ColumnistContent: &content}, want: domain.StepSave},
		{name: "columnist output without editor", draft: domain.Draft{Stage: domain.StageColumnistDone, ColumnistContent: &content}, want: domain.StepSave},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := rewrite.InferResumePoint(&tc.draft); got != tc.want {
				t.Errorf("InferResumePoint() = %s, want %s", got, tc.want)
			}
		})
	}
}
