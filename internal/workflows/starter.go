package workflows

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"docqa/internal/util"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
)

var (
	// ErrAlreadyStarted means an ingestion run for the document exists.
	ErrAlreadyStarted = errors.New("ingestion already started")
	// ErrEngineUnavailable means the workflow engine rejected or never
	// received the start request.
	ErrEngineUnavailable = errors.New("workflow engine unavailable")
)

// AsyncStart identifies a started ingestion run.
type AsyncStart struct {
	DocumentID string `json:"document_id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Starter stages uploads on disk and hands them to DocumentIngestWorkflow.
type Starter struct {
	client    tclient.Client
	taskQueue string
	dataDir   string
}

func NewStarter(c tclient.Client, taskQueue, dataDir string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue, dataDir: dataDir}
}

func (s *Starter) Start(ctx context.Context, filename string, data []byte) (AsyncStart, error) {
	documentID := uuid.NewString()
	path := util.SafeJoin(filepath.Join(s.dataDir, documentID), filename)
	if err := util.WriteFileAtomic(path, data); err != nil {
		return AsyncStart{}, fmt.Errorf("stage upload: %w", err)
	}
	we, err := s.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       WorkflowID(documentID),
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, DocumentIngestWorkflow, DocumentIngestInput{
		DocumentID: documentID,
		Filename:   filename,
		Path:       path,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return AsyncStart{}, fmt.Errorf("start ingest workflow %s: %w", WorkflowID(documentID), ErrAlreadyStarted)
		}
		return AsyncStart{}, fmt.Errorf("start ingest workflow: %w: %w", ErrEngineUnavailable, err)
	}
	return AsyncStart{DocumentID: documentID, WorkflowID: we.GetID(), RunID: we.GetRunID()}, nil
}

func (s *Starter) Progress(ctx context.Context, documentID string) (DocumentIngestProgress, error) {
	var prog DocumentIngestProgress
	resp, err := s.client.QueryWorkflow(ctx, WorkflowID(documentID), "", QueryGetProgress)
	if err != nil {
		return prog, fmt.Errorf("query ingest progress: %w", err)
	}
	if err := resp.Get(&prog); err != nil {
		return prog, fmt.Errorf("decode ingest progress: %w", err)
	}
	return prog, nil
}
