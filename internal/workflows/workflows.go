package workflows

import (
	"errors"
	"time"

	"docqa/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

const (
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

const (
	stepEnsureSchema = "ensure_schema"
	stepPrepare      = "prepare_document"
	stepIndex        = "index_chunks"
	stepCleanup      = "remove_staged_file"
)

// chunksPerRun bounds the chunk activities of one run; longer documents
// continue as new so event history stays small.
var chunksPerRun = 500

// WorkflowID is the id an upload's ingestion runs under.
func WorkflowID(documentID string) string {
	return "ingest-" + documentID
}

// DocumentIngestWorkflow indexes one staged upload chunk by chunk. The first
// chunk that still fails after activity retries stops the run; chunks indexed
// before it remain and the result reports the last indexed ordinal.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (DocumentIngestProgress, error) {
	progress := DocumentIngestProgress{
		DocumentID:  input.DocumentID,
		Filename:    input.Filename,
		Status:      StatusProcessing,
		CurrentStep: "init",
		LastOrdinal: -1,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (DocumentIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	fail := func(step string, err error) (DocumentIngestProgress, error) {
		progress.Status = StatusFailed
		progress.Steps[step] = StatusFailed
		progress.FailReason = failReason(err)
		logger.Error("document ingestion failed", "document_id", input.DocumentID, "step", step, "error", err)
		return progress, nil
	}

	resume := input.Resume
	if resume == nil {
		progress.CurrentStep = stepEnsureSchema
		progress.Steps[stepEnsureSchema] = StatusProcessing
		if err := workflow.ExecuteActivity(ctx, "EnsureSchemaActivity").Get(ctx, nil); err != nil {
			return fail(stepEnsureSchema, err)
		}
		progress.Steps[stepEnsureSchema] = "done"

		progress.CurrentStep = stepPrepare
		progress.Steps[stepPrepare] = StatusProcessing
		var prepared activities.PrepareDocumentOutput
		if err := workflow.ExecuteActivity(ctx, "PrepareDocumentActivity", activities.PrepareDocumentInput{
			DocumentID: input.DocumentID,
			Filename:   input.Filename,
			Path:       input.Path,
		}).Get(ctx, &prepared); err != nil {
			return fail(stepPrepare, err)
		}
		resume = &IngestResume{
			RawFormat:   prepared.RawFormat,
			TotalChunks: prepared.TotalChunks,
			SpillDir:    prepared.SpillDir,
		}
	} else {
		progress.Steps[stepEnsureSchema] = "done"
	}
	progress.RawFormat = resume.RawFormat
	progress.TotalChunks = resume.TotalChunks
	progress.IndexedChunks = resume.NextOrdinal
	progress.LastOrdinal = resume.NextOrdinal - 1
	progress.Steps[stepPrepare] = "done"

	progress.CurrentStep = stepIndex
	progress.Steps[stepIndex] = StatusProcessing
	for i := resume.NextOrdinal; i < resume.TotalChunks; i++ {
		if i > resume.NextOrdinal && (i-resume.NextOrdinal)%chunksPerRun == 0 {
			next := input
			next.Resume = &IngestResume{
				RawFormat:   resume.RawFormat,
				TotalChunks: resume.TotalChunks,
				SpillDir:    resume.SpillDir,
				NextOrdinal: i,
			}
			return progress, workflow.NewContinueAsNewError(ctx, DocumentIngestWorkflow, next)
		}
		if err := workflow.ExecuteActivity(ctx, "IndexChunkActivity", activities.IndexChunkInput{
			DocumentID: input.DocumentID,
			Filename:   input.Filename,
			Ordinal:    i,
			SpillDir:   resume.SpillDir,
		}).Get(ctx, nil); err != nil {
			return fail(stepIndex, err)
		}
		progress.IndexedChunks = i + 1
		progress.LastOrdinal = i
	}
	progress.Steps[stepIndex] = "done"

	progress.CurrentStep = stepCleanup
	if err := workflow.ExecuteActivity(ctx, "RemoveStagedFileActivity", activities.RemoveStagedFileInput{
		Path:     input.Path,
		SpillDir: resume.SpillDir,
	}).Get(ctx, nil); err != nil {
		logger.Warn("staged upload not removed", "path", input.Path, "error", err)
	}
	progress.Steps[stepCleanup] = "done"

	progress.Status = StatusIndexed
	progress.CurrentStep = "done"
	return progress, nil
}

func failReason(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
