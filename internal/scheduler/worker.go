package scheduler

import (
	"context"
	"fmt"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/automation"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes sequence automation tasks from the queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine *automation.Engine
	repo   *repository.Repository
	sched  SweepScheduler
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, engine *automation.Engine, repo *repository.Repository, sched SweepScheduler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		engine: engine,
		repo:   repo,
		sched:  sched,
		log:    log,
	}

	mux.HandleFunc(TaskSequenceSweep, w.handleSequenceSweep)
	mux.HandleFunc(TaskContactReconcile, w.handleContactReconcile)

	return w, nil
}

// handleSequenceSweep fans the pass out into one reconcile task per active
// contact so the queue spreads the work across the worker pool. Without a
// scheduler client it falls back to sweeping inline.
func (w *Worker) handleSequenceSweep(ctx context.Context, _ *asynq.Task) error {
	if w.sched == nil {
		_, err := w.engine.Sweep(ctx)
		return err
	}

	contacts, err := w.repo.ListContacts(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, contact := range contacts {
		if contact.SequenceStatus != domain.StatusActive {
			continue
		}
		if err := w.sched.EnqueueContactReconcile(ctx, contact.ID.String()); err != nil {
			return err
		}
		enqueued++
	}

	w.log.Info("sequence sweep fanned out", "contacts", enqueued)
	return nil
}

func (w *Worker) handleContactReconcile(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseContactReconcilePayload(task)
	if err != nil {
		return err
	}

	contactID, err := uuid.Parse(payload.ContactID)
	if err != nil {
		return err
	}

	contact, err := w.repo.GetContact(ctx, contactID)
	if err != nil {
		return err
	}

	outcome, err := w.engine.ReconcileContact(ctx, contact)
	if err != nil {
		return err
	}

	w.log.WithContactID(payload.ContactID).Debug("contact reconciled", "outcome", string(outcome))
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
