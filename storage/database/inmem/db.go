package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
)

type enrollmentKey struct {
	courseID, userID string
}

type tables struct {
	users       map[string]user.User
	courses     map[string]course.Course
	chapters    map[string]course.Chapter
	enrollments map[enrollmentKey]course.Enrollment
	resources   map[string]resource.Resource
	attachments map[string]attachment.Attachment
	assignments map[string]assignment.Assignment
	submissions map[string]assignment.Submission
}

func newTables() tables {
	return tables{
		users:       make(map[string]user.User),
		courses:     make(map[string]course.Course),
		chapters:    make(map[string]course.Chapter),
		enrollments: make(map[enrollmentKey]course.Enrollment),
		resources:   make(map[string]resource.Resource),
		attachments: make(map[string]attachment.Attachment),
		assignments: make(map[string]assignment.Assignment),
		submissions: make(map[string]assignment.Submission),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.chapters {
		c.chapters[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.resources {
		c.resources[k] = v
	}
	for k, v := range t.attachments {
		c.attachments[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.submissions {
		c.submissions[k] = v
	}
	return c
}

// DB is an in-memory store. Stored values are never mutated in place.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes transactions
	t    tables
}

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{t: newTables()}
}

// WithinTx runs fn with a nil executor. Writes made by fn are discarded when it fails.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Reset drops every row.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

func newID() string { return uuid.New().String() }
