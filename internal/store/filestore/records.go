package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ekoc/coinfolio/internal/models"
)

// ErrRecordNotFound is returned when deleting an unknown record id.
var ErrRecordNotFound = errors.New("record not found")

type recordsFile struct {
	Records []models.Record `json:"records"`
}

// RecordStore is a generic append-only record store backed by a single
// JSON file {records: [...]}, created on demand. Record ids are a
// timestamp with a random suffix.
type RecordStore struct {
	path string
	now  func() time.Time
}

// NewRecordStore creates a record store at the given file path.
func NewRecordStore(path string) (*RecordStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &RecordStore{path: path, now: time.Now}, nil
}

func (r *RecordStore) read() ([]models.Record, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read record store: %w", err)
	}

	var file recordsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record store: %w", err)
	}
	if file.Records == nil {
		return []models.Record{}, nil
	}
	return file.Records, nil
}

func (r *RecordStore) write(records []models.Record) error {
	data, err := json.MarshalIndent(recordsFile{Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record store: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write record store: %w", err)
	}
	return nil
}

// List returns all records.
func (r *RecordStore) List() ([]models.Record, error) {
	return r.read()
}

// Add appends a record wrapping the given payload and returns it.
func (r *RecordStore) Add(payload json.RawMessage) (models.Record, error) {
	records, err := r.read()
	if err != nil {
		return models.Record{}, err
	}

	now := r.now()
	record := models.Record{
		ID:        fmt.Sprintf("%d-%06x", now.UnixMilli(), rand.Intn(1<<24)),
		CreatedAt: now.UTC().Format(isoFormat),
		Data:      payload,
	}

	records = append(records, record)
	if err := r.write(records); err != nil {
		return models.Record{}, err
	}
	return record, nil
}

// Delete removes the record with the given id.
func (r *RecordStore) Delete(id string) error {
	records, err := r.read()
	if err != nil {
		return err
	}

	next := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			next = append(next, rec)
		}
	}
	if len(next) == len(records) {
		return ErrRecordNotFound
	}
	return r.write(next)
}
