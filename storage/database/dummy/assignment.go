package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/assignment"
)

type assignmentRepository struct {
	db      *assignmentTables
	courses *courseTables
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment, courses: db.course}
}

func (repo *assignmentRepository) CourseInstructor(ctx context.Context, courseID string) (string, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if crs, ok := repo.courses.courses[courseID]; ok {
		return crs.InstructorID, nil
	}
	return "", nil
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, scope access.Scope, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asgs := make([]assignment.Assignment, 0, len(repo.db.assignments))
	for _, asg := range repo.db.assignments {
		switch {
		case scope.All:
		case scope.CreatedByID != "":
			if asg.CreatedByID != scope.CreatedByID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.CourseID != "" && asg.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && asg.Status != filter.Status {
				continue
			}
		}
		asgs = append(asgs, *asg)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return *asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[asg.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.assignments, id)
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, scope access.Scope, filter *assignment.SubmissionQueryFilter, ordering []core.DBOrdering) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]assignment.Submission, 0, len(repo.db.submissions))
	for _, sub := range repo.db.submissions {
		switch {
		case scope.All:
		case scope.StudentID != "":
			if sub.StudentID != scope.StudentID {
				continue
			}
		case scope.CourseInstructorID != "":
			asg, ok := repo.db.assignments[sub.AssignmentID]
			if !ok {
				continue
			}
			if instructor, _ := repo.CourseInstructor(ctx, asg.CourseID); instructor != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
				continue
			}
			if filter.StudentID != "" && sub.StudentID != filter.StudentID {
				continue
			}
			if filter.Status != "" && sub.Status != filter.Status {
				continue
			}
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, id string) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetSubmissionForStudent(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}
