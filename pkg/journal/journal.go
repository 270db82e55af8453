// Package journal keeps a local JSON history of executed transactions
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"walletcore/pkg/tx"
)

// Status is the outcome of an execution
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusFailed           Status = "failed"
)

// ErrNotFound is returned for unknown record ids
var ErrNotFound = errors.New("record not found")

// Record is one executed transaction
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Engine    string    `json:"engine"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Amount    string    `json:"amount"`
	Fee       string    `json:"fee,omitempty"`
	Hashed    bool      `json:"hashed"`
	// TxID is the broadcast hash or the backend reference
	TxID   string `json:"tx_id,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	// ApprovalURL is set while a bank payment waits for the user
	ApprovalURL string `json:"approval_url,omitempty"`
}

// NewRecord describes the execution of ptx. err is the error returned by
// execute, if any.
func NewRecord(engine, action, source, target string, ptx tx.PendingTx, res tx.TxResult, err error) Record {
	r := Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Engine:    engine,
		Action:    action,
		Source:    source,
		Target:    target,
		Amount:    ptx.Amount.String(),
		Hashed:    res.IsHashed(),
		TxID:      res.ID(),
		Status:    StatusCompleted,
	}
	if fee := ptx.FeeAmount; fee.Currency().Code != "" && !fee.IsZero() {
		r.Fee = fee.String()
	}

	var approval *tx.ApprovalRequiredError
	switch {
	case err == nil:
	case errors.As(err, &approval):
		r.Status = StatusAwaitingApproval
		r.ApprovalURL = approval.AuthorisationURL
	default:
		r.Status = StatusFailed
		r.Error = err.Error()
	}
	return r
}

// Journal stores records in a JSON file
type Journal struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]Record
}

type fileFormat struct {
	Records []Record `json:"records"`
}

// Open loads the journal at filePath. A missing file is an empty journal.
func Open(filePath string) (*Journal, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, ".walletcore", "journal.json")
	}

	j := &Journal{filePath: filePath, records: map[string]Record{}}
	if err := j.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	return j, nil
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	for _, r := range f.Records {
		j.records[r.ID] = r
	}
	return nil
}

// save must be called with the write lock held
func (j *Journal) save() error {
	data, err := json.MarshalIndent(fileFormat{Records: j.sorted(nil)}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for an atomic write
	tempFile := j.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, j.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Add stores r, assigning an id when it has none
func (j *Journal) Add(r Record) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := j.records[r.ID]; exists {
		return Record{}, fmt.Errorf("record '%s' already exists", r.ID)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	j.records[r.ID] = r
	if err := j.save(); err != nil {
		delete(j.records, r.ID)
		return Record{}, err
	}
	return r, nil
}

// Get retrieves a record by id
func (j *Journal) Get(id string) (Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r, ok := j.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// SetStatus moves a record to status, e.g. once a bank payment is approved
func (j *Journal) SetStatus(id string, status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	r, ok := j.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := r
	r.Status = status
	if status == StatusCompleted {
		r.ApprovalURL = ""
	}
	j.records[id] = r
	if err := j.save(); err != nil {
		j.records[id] = prev
		return err
	}
	return nil
}

// List returns records newest first. A nil filter returns everything.
func (j *Journal) List(filter func(Record) bool) []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sorted(filter)
}

// ByStatus returns the records with status, newest first
func (j *Journal) ByStatus(status Status) []Record {
	return j.List(func(r Record) bool { return r.Status == status })
}

func (j *Journal) sorted(filter func(Record) bool) []Record {
	out := make([]Record, 0, len(j.records))
	for _, r := range j.records {
		if filter == nil || filter(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Timestamp.Equal(out[b].Timestamp) {
			return out[a].ID < out[b].ID
		}
		return out[a].Timestamp.After(out[b].Timestamp)
	})
	return out
}

// Count returns the number of records
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.filePath
}
