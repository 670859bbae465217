package dummydb

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/coursework"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

// DB is an in-memory database enforcing the constraints of the SQL schema.
// All the tables share one lock so that cascades stay consistent.
type DB struct {
	sync.RWMutex

	users       map[string]user.User
	classes     map[string]school.Class
	subjects    map[string]school.Subject
	courses     map[string]school.Course
	enrollments map[string]school.Enrollment
	assignments map[string]coursework.Assignment
	materials   map[string]coursework.Material
	exams       map[string]coursework.Exam
	submissions map[string]submission.Submission
}

func Open() (*DB, error) {
	db := &DB{
		users:       make(map[string]user.User),
		classes:     make(map[string]school.Class),
		subjects:    make(map[string]school.Subject),
		courses:     make(map[string]school.Course),
		enrollments: make(map[string]school.Enrollment),
		assignments: make(map[string]coursework.Assignment),
		materials:   make(map[string]coursework.Material),
		exams:       make(map[string]coursework.Exam),
		submissions: make(map[string]submission.Submission),
	}
	return db, nil
}

// Truncate empties all the tables.
func (db *DB) Truncate() {
	db.Lock()
	defer db.Unlock()

	db.users = make(map[string]user.User)
	db.classes = make(map[string]school.Class)
	db.subjects = make(map[string]school.Subject)
	db.courses = make(map[string]school.Course)
	db.enrollments = make(map[string]school.Enrollment)
	db.assignments = make(map[string]coursework.Assignment)
	db.materials = make(map[string]coursework.Material)
	db.exams = make(map[string]coursework.Exam)
	db.submissions = make(map[string]submission.Submission)
}

func newID() string {
	return uuid.New().String()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// sortSlice sorts slice on the first ordering field keys knows, falling back to dflt (ascending).
// The keys funcs return the sort key of the i-th item of slice.
func sortSlice(slice interface{}, ordering []core.DBOrdering, dflt string, keys map[string]func(i int) string) {
	key, asc := keys[dflt], true
	for _, ord := range ordering {
		if k, ok := keys[ord.Field]; ok {
			key, asc = k, ord.Ascending
			break
		}
	}
	if key == nil {
		return
	}
	sort.SliceStable(slice, func(i, j int) bool {
		if asc {
			return key(i) < key(j)
		}
		return key(i) > key(j)
	})
}

func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000")
}

// nullKey sorts nulls after any value on ascending orderings, the way Postgres does.
const nullKey = "~"

func nullTimeKey(t null.Time) string {
	if !t.Valid {
		return nullKey
	}
	return timeKey(t.Time)
}

// nullFloatKey only orders non-negative values.
func nullFloatKey(f null.Float64) string {
	if !f.Valid {
		return nullKey
	}
	return fmt.Sprintf("%020.6f", f.Float64)
}

func lower(s string) string {
	return strings.ToLower(s)
}
