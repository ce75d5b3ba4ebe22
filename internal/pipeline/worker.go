package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/pagegest/internal/metrics"
)

// Worker processes queued ingest jobs one at a time.
type Worker struct {
	ingestor *Ingestor
	log      *slog.Logger
}

func NewWorker(ingestor *Ingestor, log *slog.Logger) *Worker {
	return &Worker{ingestor: ingestor, log: log}
}

// Process runs the ingest for a job and records its terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	req := job.Request()
	log := w.log.With("job_id", job.ID, "doc_id", req.DocID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !job.begin(cancel) {
		log.Info("job canceled before start")
		metrics.JobsFinished.WithLabelValues(string(StatusCanceled)).Inc()
		return
	}

	req.OnProgress = job.SetResult
	res, err := w.ingestor.Run(ctx, req)
	job.SetResult(res)

	switch {
	case errors.Is(err, context.Canceled):
		log.Info("ingest canceled", "pages", res.Pages, "chunks", res.Chunks)
		job.SetStatus(StatusCanceled, "canceled")
	case err != nil:
		log.Error("ingest failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "crawling")
	case res.Empty:
		job.AddError("no extractable content")
		job.SetStatus(StatusEmpty, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	metrics.JobsFinished.WithLabelValues(string(job.CurrentStatus())).Inc()
}
