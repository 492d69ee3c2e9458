package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
)

type (
	// DB keeps every table in memory. It is safe for concurrent use.
	DB struct {
		user       *userTable
		assignment *assignmentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.assignment.Lock()
	db.assignment.table = make(map[string]*assignment.Assignment)
	db.assignment.Unlock()
}

func newID() string {
	return uuid.NewString()
}
