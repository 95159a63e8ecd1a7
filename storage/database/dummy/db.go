// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/shule/core/announce"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user       *userTable
		course     *courseTables
		assignment *assignmentTables
		exam       *examTables
		library    *libraryTables
		announce   *announceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTables struct {
		sync.RWMutex
		courses     map[string]*course.Course
		lectures    map[string]*course.Lecture
		enrollments map[string]*course.Enrollment
		progress    map[string]*course.LectureProgress
	}

	assignmentTables struct {
		sync.RWMutex
		assignments map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
	}

	examTables struct {
		sync.RWMutex
		tests       map[string]*exam.Test
		questions   map[string]*exam.Question
		submissions map[string]*exam.Submission
		answers     map[string]*exam.Answer
	}

	libraryTables struct {
		sync.RWMutex
		items     map[string]*library.Item
		favorites map[string]*library.Favorite
	}

	announceTable struct {
		sync.RWMutex
		table map[string]*announce.Announcement
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTables{
			courses:     make(map[string]*course.Course),
			lectures:    make(map[string]*course.Lecture),
			enrollments: make(map[string]*course.Enrollment),
			progress:    make(map[string]*course.LectureProgress),
		},
		assignment: &assignmentTables{
			assignments: make(map[string]*assignment.Assignment),
			submissions: make(map[string]*assignment.Submission),
		},
		exam: &examTables{
			tests:       make(map[string]*exam.Test),
			questions:   make(map[string]*exam.Question),
			submissions: make(map[string]*exam.Submission),
			answers:     make(map[string]*exam.Answer),
		},
		library: &libraryTables{
			items:     make(map[string]*library.Item),
			favorites: make(map[string]*library.Favorite),
		},
		announce: &announceTable{table: make(map[string]*announce.Announcement)},
	}
	return db, nil
}
