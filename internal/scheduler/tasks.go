// Package scheduler runs the sequence automation in the background via
// asynq over Redis: a full sweep on a timer plus targeted single-contact
// reconciliation.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSequenceSweep = "sequence.sweep"

const TaskContactReconcile = "sequence.contact.reconcile"

// ContactReconcilePayload targets one contact for reconciliation.
type ContactReconcilePayload struct {
	ContactID string `json:"contactId"`
}

// NewSequenceSweepTask builds the full-sweep task. Sweeps carry no payload.
func NewSequenceSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSequenceSweep, nil)
}

func NewContactReconcileTask(payload ContactReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContactReconcile, data), nil
}

func ParseContactReconcilePayload(task *asynq.Task) (ContactReconcilePayload, error) {
	var payload ContactReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ContactReconcilePayload{}, err
	}
	return payload, nil
}
