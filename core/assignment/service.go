package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, scope access.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignmentsByID(ctx context.Context, ids ...string) error

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, scope access.Scope, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetSubmissionForStudent(ctx context.Context, assignmentID, studentID string) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)

		// CourseInstructor resolves a course's instructor id ("" when unset).
		CourseInstructor(ctx context.Context, courseID string) (string, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor *user.User, na NewAssignment) (Assignment, error)
		Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetByID(ctx context.Context, actor *user.User, id string) (Assignment, error)
		Update(ctx context.Context, actor *user.User, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, actor *user.User, ids ...string) error

		Submit(ctx context.Context, actor *user.User, sa SubmitAssignment) (Submission, error)
		QuerySubmissions(ctx context.Context, actor *user.User, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		GetSubmission(ctx context.Context, actor *user.User, id string) (Submission, error)
		Grade(ctx context.Context, actor *user.User, submissionID string, gs GradeSubmission) (Submission, error)

		SweepOverdue(ctx context.Context, dryRun bool) ([]Assignment, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor *user.User, na NewAssignment) (Assignment, error) {
	if err := access.CanCreate(actor, access.EntityAssignment); err != nil {
		return Assignment{}, err
	}
	now := time.Now().UTC()
	asg := Assignment{
		CourseID:    na.CourseID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		TotalMarks:  na.TotalMarks,
		CreatedByID: access.Attribution(actor, access.EntityAssignment).CreatedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	asg.Normalize(now)
	return svc.repo.CreateAssignment(ctx, asg)
}

func (svc *service) Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	if filter != nil {
		filter.Clean()
	}
	asgs, err := svc.repo.QueryAssignments(ctx, access.Resolve(actor, access.EntityAssignment), filter, ordering)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range asgs {
		asgs[i].Normalize(now)
	}
	return asgs, nil
}

func (svc *service) GetByID(ctx context.Context, actor *user.User, id string) (Assignment, error) {
	asg, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if scope := access.Resolve(actor, access.EntityAssignment); !scope.All && asg.CreatedByID != scope.CreatedByID {
		return Assignment{}, ErrNotFound
	}
	asg.Normalize(time.Now().UTC())
	return asg, nil
}

func (svc *service) Update(ctx context.Context, actor *user.User, id string, ua UpdateAssignment) (Assignment, error) {
	asg, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.canMutate(actor, access.EntityAssignment, asg.CreatedByID, ErrNotFound); err != nil {
		return Assignment{}, err
	}

	if ua.Title != "" {
		asg.Title = ua.Title
	}
	if ua.Description != "" {
		asg.Description = ua.Description
	}
	if ua.DueDate != nil {
		asg.DueDate = ua.DueDate
	}
	if ua.TotalMarks != nil {
		asg.TotalMarks = *ua.TotalMarks
	}
	now := time.Now().UTC()
	asg.UpdatedAt = now
	asg.Normalize(now)
	return svc.repo.UpdateAssignment(ctx, asg)
}

func (svc *service) Delete(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		asg, err := svc.GetByID(ctx, actor, id)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, access.EntityAssignment, asg.CreatedByID, ErrNotFound); err != nil {
			return err
		}
	}
	return svc.repo.DeleteAssignmentsByID(ctx, ids...)
}

// -------------------------------------------------------------- submissions

// Submit upserts the requesting student's submission: resubmitting updates
// the existing row instead of creating a second one.
func (svc *service) Submit(ctx context.Context, actor *user.User, sa SubmitAssignment) (Submission, error) {
	if err := access.CanCreate(actor, access.EntityAssignmentSubmission); err != nil {
		return Submission{}, err
	}
	asg, err := svc.repo.GetAssignment(ctx, sa.AssignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	sub, err := svc.repo.GetSubmissionForStudent(ctx, asg.ID, actor.ID)
	switch errors.Cause(err) {
	case nil:
	case ErrSubmissionNotFound:
		sub = Submission{
			AssignmentID: asg.ID,
			StudentID:    actor.ID,
			SubmittedAt:  now,
		}
	default:
		return Submission{}, err
	}

	sub.SubmissionText = sa.SubmissionText
	sub.FileURL = sa.FileURL
	sub.Status = SubmissionSubmitted
	sub.UpdatedAt = now

	if sub.ID == "" {
		return svc.repo.CreateSubmission(ctx, sub)
	}
	return svc.repo.UpdateSubmission(ctx, sub)
}

func (svc *service) QuerySubmissions(ctx context.Context, actor *user.User, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QuerySubmissions(ctx, access.Resolve(actor, access.EntityAssignmentSubmission), filter, ordering)
}

func (svc *service) GetSubmission(ctx context.Context, actor *user.User, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if ok, err := svc.submissionVisible(ctx, actor, sub); err != nil {
		return Submission{}, err
	} else if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return sub, nil
}

// Grade marks a submission: teachers may only grade submissions of their own
// courses. The letter grade derives from the assignment's total marks.
func (svc *service) Grade(ctx context.Context, actor *user.User, submissionID string, gs GradeSubmission) (Submission, error) {
	if actor == nil || actor.IsStudent() {
		return Submission{}, access.ErrDenied
	}
	sub, err := svc.GetSubmission(ctx, actor, submissionID)
	if err != nil {
		return Submission{}, err
	}
	asg, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	marks := gs.MarksObtained
	sub.MarksObtained = &marks
	sub.Grade = core.LetterGrade(core.Percent(marks, asg.TotalMarks))
	sub.TeacherFeedback = gs.TeacherFeedback
	sub.GradedByID = actor.ID
	sub.GradedAt = &now
	sub.Status = SubmissionGraded
	sub.UpdatedAt = now
	return svc.repo.UpdateSubmission(ctx, sub)
}

// ------------------------------------------------------------------- sweeps

// SweepOverdue flips past-due active assignments to overdue (normalizing any
// lingering legacy statuses on the way) against a single clock read, and
// reports the rows it changed. With dryRun nothing is written.
func (svc *service) SweepOverdue(ctx context.Context, dryRun bool) ([]Assignment, error) {
	asgs, err := svc.repo.QueryAssignments(ctx, access.Scope{All: true}, nil, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var changed []Assignment
	for _, asg := range asgs {
		before := asg.Status
		asg.Normalize(now)
		if asg.Status == before {
			continue
		}
		if !dryRun {
			asg.UpdatedAt = now
			if _, err = svc.repo.UpdateAssignment(ctx, asg); err != nil {
				return changed, errors.Wrapf(err, "updating assignment %s", asg.ID)
			}
		}
		changed = append(changed, asg)
	}
	return changed, nil
}

// ------------------------------------------------------------------ helpers

func (svc *service) submissionVisible(ctx context.Context, actor *user.User, sub Submission) (bool, error) {
	scope := access.Resolve(actor, access.EntityAssignmentSubmission)
	switch {
	case scope.All:
		return true, nil
	case scope.StudentID != "":
		return sub.StudentID == scope.StudentID, nil
	case scope.CourseInstructorID != "":
		asg, err := svc.repo.GetAssignment(ctx, sub.AssignmentID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return false, nil
			}
			return false, err
		}
		instructor, err := svc.repo.CourseInstructor(ctx, asg.CourseID)
		if err != nil {
			return false, err
		}
		return instructor == scope.CourseInstructorID, nil
	}
	return false, nil
}

func (svc *service) canMutate(actor *user.User, e access.Entity, ownerID string, notFound error) error {
	switch err := access.CanMutate(actor, e, ownerID); err {
	case nil:
		return nil
	case access.ErrHidden:
		return notFound
	default:
		return err
	}
}
