// Package persistence stores completed solving runs in a relational
// database through GORM, so past task analyses, plans and transcripts
// can be queried after the fact.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/netmind-ai/autocompany/company"
)

// ErrRunNotFound is returned when no record matches the requested run ID.
var ErrRunNotFound = errors.New("persistence: run not found")

// SolvingRecord is a persisted company run.
type SolvingRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"uniqueIndex;size:64" json:"run_id"`
	Task       string    `json:"task"`
	Analysis   string    `json:"analysis"`
	PlanJSON   string    `json:"plan_json"`
	History    string    `json:"history"`
	Summary    string    `json:"summary"`
	Transcript string    `json:"transcript"`
	Status     string    `gorm:"index;size:32" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName keeps the table name explicit.
func (SolvingRecord) TableName() string { return "solving_records" }

// Store persists solving records.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With(zap.String("component", "persistence"))
	}
}

// Open creates a sqlite-backed store at path (":memory:" for tests)
// and migrates the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db, opts...)
}

// NewStore wraps an existing GORM connection and migrates the schema.
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&SolvingRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// SaveRun records the outcome of a company run. It implements
// company.RecordStore.
func (s *Store) SaveRun(ctx context.Context, res *company.Result, status string) error {
	if res == nil {
		return errors.New("persistence: nil result")
	}

	var planJSON string
	if res.Plan != nil {
		data, err := json.Marshal(res.Plan)
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		planJSON = string(data)
	}

	rec := SolvingRecord{
		RunID:      res.RunID,
		Task:       res.Task,
		Analysis:   res.Analysis,
		PlanJSON:   planJSON,
		History:    res.History,
		Summary:    res.Summary,
		Transcript: res.Transcript,
		Status:     status,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save run %s: %w", res.RunID, err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", res.RunID),
		zap.String("status", status),
	)
	return nil
}

// GetRun fetches a single record by run ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*SolvingRecord, error) {
	var rec SolvingRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRuns returns the most recent records, newest first. A non-empty
// status filters by outcome; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, status string, limit int) ([]SolvingRecord, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []SolvingRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return recs, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
