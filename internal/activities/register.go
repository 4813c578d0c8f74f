package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.EnsureSchemaActivity)
	w.RegisterActivity(a.PrepareDocumentActivity)
	w.RegisterActivity(a.IndexChunkActivity)
	w.RegisterActivity(a.RemoveStagedFileActivity)
}
