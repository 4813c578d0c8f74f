package workflows

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newIngestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentIngestWorkflow)
	registerActivityName(env, "EnsureSchemaActivity", func(context.Context) error { return nil })
	registerActivityName(env, "PrepareDocumentActivity", func(context.Context, activities.PrepareDocumentInput) (activities.PrepareDocumentOutput, error) {
		return activities.PrepareDocumentOutput{}, nil
	})
	registerActivityName(env, "IndexChunkActivity", func(context.Context, activities.IndexChunkInput) error { return nil })
	registerActivityName(env, "RemoveStagedFileActivity", func(context.Context, activities.RemoveStagedFileInput) error { return nil })
	return env
}

var ingestInput = DocumentIngestInput{DocumentID: "doc1", Filename: "facts.txt", Path: "/tmp/doc1/facts.txt"}

func TestDocumentIngestWorkflowSuccess(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("EnsureSchemaActivity", mock.Anything).Return(nil)
	env.OnActivity("PrepareDocumentActivity", mock.Anything, activities.PrepareDocumentInput{DocumentID: "doc1", Filename: "facts.txt", Path: "/tmp/doc1/facts.txt"}).
		Return(activities.PrepareDocumentOutput{RawFormat: "text", TotalChunks: 3, SpillDir: "/tmp/doc1/facts.txt.chunks"}, nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, mock.Anything).Return(nil).Times(3)
	env.OnActivity("RemoveStagedFileActivity", mock.Anything, activities.RemoveStagedFileInput{Path: "/tmp/doc1/facts.txt", SpillDir: "/tmp/doc1/facts.txt.chunks"}).Return(nil)

	env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusIndexed, out.Status)
	require.Equal(t, 3, out.TotalChunks)
	require.Equal(t, 3, out.IndexedChunks)
	require.Equal(t, 2, out.LastOrdinal)
	env.AssertExpectations(t)
}

func TestDocumentIngestWorkflowStopsAtFailedChunk(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("EnsureSchemaActivity", mock.Anything).Return(nil)
	env.OnActivity("PrepareDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.PrepareDocumentOutput{RawFormat: "text", TotalChunks: 4, SpillDir: "/spill"}, nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, activities.IndexChunkInput{DocumentID: "doc1", Filename: "facts.txt", Ordinal: 0, SpillDir: "/spill"}).Return(nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, activities.IndexChunkInput{DocumentID: "doc1", Filename: "facts.txt", Ordinal: 1, SpillDir: "/spill"}).Return(nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, activities.IndexChunkInput{DocumentID: "doc1", Filename: "facts.txt", Ordinal: 2, SpillDir: "/spill"}).
		Return(temporal.NewNonRetryableApplicationError("quota exhausted", "EmbeddingError", errors.New("quota exhausted")))

	env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, 1, out.LastOrdinal)
	require.Equal(t, 2, out.IndexedChunks)
	require.Contains(t, out.FailReason, "quota exhausted")
	require.Equal(t, StatusFailed, out.Steps["index_chunks"])
}

func TestDocumentIngestWorkflowExtractionFailure(t *testing.T) {
	env := newIngestEnv(t)
	env.OnActivity("EnsureSchemaActivity", mock.Anything).Return(nil)
	env.OnActivity("PrepareDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.PrepareDocumentOutput{}, temporal.NewNonRetryableApplicationError("not a zip", activities.ErrTypeExtraction, nil))

	env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out.Status)
	require.Equal(t, -1, out.LastOrdinal)
	require.Equal(t, 0, out.TotalChunks)
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "ingest-abc", WorkflowID("abc"))
}

func withChunksPerRun(t *testing.T, n int) {
	t.Helper()
	prev := chunksPerRun
	chunksPerRun = n
	t.Cleanup(func() { chunksPerRun = prev })
}

func TestDocumentIngestWorkflowLargeDocumentContinuesAsNew(t *testing.T) {
	withChunksPerRun(t, 100)
	env := newIngestEnv(t)
	env.OnActivity("EnsureSchemaActivity", mock.Anything).Return(nil)
	env.OnActivity("PrepareDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.PrepareDocumentOutput{RawFormat: "text", TotalChunks: 3500, SpillDir: "/spill"}, nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, mock.Anything).Return(nil).Times(100)

	env.ExecuteWorkflow(DocumentIngestWorkflow, ingestInput)
	require.True(t, env.IsWorkflowCompleted())
	var can *workflow.ContinueAsNewError
	require.True(t, errors.As(env.GetWorkflowError(), &can))
	env.AssertExpectations(t)
}

func TestDocumentIngestWorkflowResumedRunFinishes(t *testing.T) {
	withChunksPerRun(t, 100)
	env := newIngestEnv(t)
	env.OnActivity("IndexChunkActivity", mock.Anything, activities.IndexChunkInput{DocumentID: "doc1", Filename: "facts.txt", Ordinal: 3400, SpillDir: "/spill"}).Return(nil)
	env.OnActivity("IndexChunkActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("RemoveStagedFileActivity", mock.Anything, activities.RemoveStagedFileInput{Path: "/tmp/doc1/facts.txt", SpillDir: "/spill"}).Return(nil)

	in := ingestInput
	in.Resume = &IngestResume{RawFormat: "text", TotalChunks: 3500, SpillDir: "/spill", NextOrdinal: 3400}
	env.ExecuteWorkflow(DocumentIngestWorkflow, in)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentIngestProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusIndexed, out.Status)
	require.Equal(t, 3500, out.TotalChunks)
	require.Equal(t, 3500, out.IndexedChunks)
	require.Equal(t, 3499, out.LastOrdinal)
	env.AssertNotCalled(t, "PrepareDocumentActivity", mock.Anything, mock.Anything)
}
