package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Source: "/b", Path: "x.docx", Action: ActionProcess, Status: StatusProcessed},
			{Source: "", Action: ActionProcess, Status: StatusFailed}, // fatal 等合成项
			{Source: "/a", Path: "y.docx", Action: ActionProcess, Status: StatusFailed},
			{Source: "/a", Path: "y.docx", Action: ActionRename, Status: StatusRenamed},
			{Source: "/a", Path: "z.pdf", Action: ActionCopy, Status: StatusCopied},
			{Source: "/a", Path: "w.docx", Action: ActionRename, Status: StatusConflict},
		},
	}

	r.Finalize()

	got := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		got = append(got, it.Source+"|"+it.Path+"|"+it.Action)
	}
	assert.Equal(t, []string{
		"/a|w.docx|rename",
		"/a|y.docx|rename",
		"/a|y.docx|process",
		"/a|z.pdf|copy",
		"/b|x.docx|process",
		"||process",
	}, got)

	assert.Equal(t, ReportSummary{Processed: 1, Copied: 1, Renamed: 1, Failed: 2, Conflicts: 1}, r.Summary)
	assert.Equal(t, time.UTC, r.StartedAt.Location())
}

func TestRunReport_MarshalJSON_EmptySlices(t *testing.T) {
	r := RunReport{Items: []ItemResult{{Source: "/a", Path: "x", Action: ActionCopy, Status: StatusCopied}}}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sources":[]`)
	assert.Contains(t, string(b), `"outputs":[]`)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateCounting))
	assert.True(t, CanTransition(StateCounting, StateProcessing))
	assert.True(t, CanTransition(StateRenaming, StateFailed))
	assert.False(t, CanTransition(StateIdle, StateProcessing))
	assert.False(t, CanTransition(StateCompleted, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateIdle))
	assert.True(t, StateFailed.Terminal())
}

func TestFolderCode_Separator(t *testing.T) {
	assert.Equal(t, " - ", FolderCode("01 - Intro").Separator())
	assert.Equal(t, "-", FolderCode("CAL-05").Separator())
	assert.Equal(t, "-", FolderCode("Docs").Separator())
}

func TestProgress_Fraction(t *testing.T) {
	assert.Equal(t, 0.0, Progress{Processed: 3}.Fraction())
	assert.Equal(t, 0.5, Progress{Processed: 1, Total: 2}.Fraction())
	assert.Equal(t, 1.0, Progress{Processed: 5, Total: 2}.Fraction())
}
