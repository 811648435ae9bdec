// Package repository provides persistence access for the sequence core over
// the key-value port. Collections are stored as whole JSON documents; every
// mutation is a read-modify-write guarded by a process-wide lock, matching
// the single-logical-writer deployment model.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/apperr"

	"github.com/google/uuid"
)

const contactNotFoundMsg = "contact not found"

// Repository reads and writes the contact and sequence-task collections.
type Repository struct {
	store kvstore.Store

	// Guards read-modify-write cycles. Collections are written whole, so
	// concurrent mutators would otherwise lose each other's updates.
	mu sync.Mutex
}

// New creates a repository over the given persistence port.
func New(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// =============================================================================
// Contacts
// =============================================================================

func (r *Repository) loadContacts(ctx context.Context) (map[uuid.UUID]domain.Contact, error) {
	data, err := r.store.Get(ctx, kvstore.CollectionContacts)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	contacts := make(map[uuid.UUID]domain.Contact)
	if len(data) == 0 {
		return contacts, nil
	}
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

func (r *Repository) writeContacts(ctx context.Context, contacts map[uuid.UUID]domain.Contact) error {
	data, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.CollectionContacts, data); err != nil {
		return fmt.Errorf("failed to write contacts: %w", err)
	}
	return nil
}

// GetContact retrieves a contact by ID.
func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (domain.Contact, error) {
	contacts, err := r.loadContacts(ctx)
	if err != nil {
		return domain.Contact{}, err
	}
	contact, ok := contacts[id]
	if !ok {
		return domain.Contact{}, apperr.NotFound(contactNotFoundMsg)
	}
	return contact, nil
}

// ListContacts returns every contact in the collection.
func (r *Repository) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	contacts, err := r.loadContacts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c)
	}
	return out, nil
}

// SaveContact inserts or replaces a single contact. The whole cycle runs
// under the repository lock so concurrent saves of different contacts
// cannot lose each other's writes.
func (r *Repository) SaveContact(ctx context.Context, contact domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contacts, err := r.loadContacts(ctx)
	if err != nil {
		return err
	}
	contact.UpdatedAt = time.Now().UTC()
	contacts[contact.ID] = contact
	return r.writeContacts(ctx, contacts)
}

// =============================================================================
// Tasks
// =============================================================================

func (r *Repository) loadTasks(ctx context.Context) ([]domain.Task, error) {
	data, err := r.store.Get(ctx, kvstore.CollectionTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if len(data) == 0 {
		return []domain.Task{}, nil
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repository) writeTasks(ctx context.Context, tasks []domain.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.CollectionTasks, data); err != nil {
		return fmt.Errorf("failed to write tasks: %w", err)
	}
	return nil
}

// ListTasks returns every task in the collection.
func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return r.loadTasks(ctx)
}

// ListContactTasks returns every task belonging to one contact.
func (r *Repository) ListContactTasks(ctx context.Context, contactID uuid.UUID) ([]domain.Task, error) {
	tasks, err := r.loadTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ContactID == contactID {
			out = append(out, t)
		}
	}
	return out, nil
}

// MutateTasks applies fn to the full task list under the repository lock
// and persists the result. fn returns the new list and whether anything
// changed; unchanged lists are not rewritten.
func (r *Repository) MutateTasks(ctx context.Context, fn func(tasks []domain.Task) ([]domain.Task, bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.loadTasks(ctx)
	if err != nil {
		return err
	}
	updated, changed, err := fn(tasks)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return r.writeTasks(ctx, updated)
}
