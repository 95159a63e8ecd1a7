package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	db      *examTables
	courses *courseTables
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db.exam, courses: db.course}
}

func (repo *examRepository) CourseInstructor(ctx context.Context, courseID string) (string, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if crs, ok := repo.courses.courses[courseID]; ok {
		return crs.InstructorID, nil
	}
	return "", nil
}

// testInstructor resolves a test's course instructor; callers must hold
// repo.db's lock.
func (repo *examRepository) testInstructor(ctx context.Context, testID string) string {
	tst, ok := repo.db.tests[testID]
	if !ok {
		return ""
	}
	instructor, _ := repo.CourseInstructor(ctx, tst.CourseID)
	return instructor
}

// -------------------------------------------------------------------- tests

func (repo *examRepository) CreateTest(ctx context.Context, tst exam.Test) (exam.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tst.ID = uuid.New().String()
	repo.db.tests[tst.ID] = &tst
	return tst, nil
}

func (repo *examRepository) QueryTests(ctx context.Context, scope access.Scope, filter *exam.TestQueryFilter, ordering []core.DBOrdering) ([]exam.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tests := make([]exam.Test, 0, len(repo.db.tests))
	for _, tst := range repo.db.tests {
		switch {
		case scope.All:
		case scope.CreatedByID != "":
			if tst.CreatedByID != scope.CreatedByID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.CourseID != "" && tst.CourseID != filter.CourseID {
				continue
			}
			if filter.Status != "" && tst.Status != filter.Status {
				continue
			}
		}
		tests = append(tests, *tst)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.Before(tests[j].CreatedAt) })
	return tests, nil
}

func (repo *examRepository) GetTest(ctx context.Context, id string) (exam.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tst, ok := repo.db.tests[id]; ok {
		return *tst, nil
	}
	return exam.Test{}, exam.ErrTestNotFound
}

func (repo *examRepository) UpdateTest(ctx context.Context, tst exam.Test) (exam.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tests[tst.ID]; !ok {
		return exam.Test{}, exam.ErrTestNotFound
	}
	repo.db.tests[tst.ID] = &tst
	return tst, nil
}

func (repo *examRepository) DeleteTestsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.tests, id)
	}
	return nil
}

// ---------------------------------------------------------------- questions

func (repo *examRepository) CreateQuestion(ctx context.Context, qst exam.Question) (exam.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	qst.ID = uuid.New().String()
	repo.db.questions[qst.ID] = &qst
	return qst, nil
}

func (repo *examRepository) QueryQuestions(ctx context.Context, scope access.Scope, filter *exam.QuestionQueryFilter, ordering []core.DBOrdering) ([]exam.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	questions := make([]exam.Question, 0, len(repo.db.questions))
	for _, qst := range repo.db.questions {
		switch {
		case scope.All:
		case scope.CourseInstructorID != "":
			if repo.testInstructor(ctx, qst.TestID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil && filter.TestID != "" && qst.TestID != filter.TestID {
			continue
		}
		questions = append(questions, *qst)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].OrderIndex < questions[j].OrderIndex })
	return questions, nil
}

func (repo *examRepository) GetQuestion(ctx context.Context, id string) (exam.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if qst, ok := repo.db.questions[id]; ok {
		return *qst, nil
	}
	return exam.Question{}, exam.ErrQuestionNotFound
}

func (repo *examRepository) UpdateQuestion(ctx context.Context, qst exam.Question) (exam.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.questions[qst.ID]; !ok {
		return exam.Question{}, exam.ErrQuestionNotFound
	}
	repo.db.questions[qst.ID] = &qst
	return qst, nil
}

func (repo *examRepository) DeleteQuestionsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.questions, id)
	}
	return nil
}

// -------------------------------------------------------------- submissions

func (repo *examRepository) CreateSubmission(ctx context.Context, sub exam.Submission) (exam.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *examRepository) QuerySubmissions(ctx context.Context, scope access.Scope, filter *exam.SubmissionQueryFilter, ordering []core.DBOrdering) ([]exam.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]exam.Submission, 0, len(repo.db.submissions))
	for _, sub := range repo.db.submissions {
		switch {
		case scope.All:
		case scope.StudentID != "":
			if sub.StudentID != scope.StudentID {
				continue
			}
		case scope.CourseInstructorID != "":
			if repo.testInstructor(ctx, sub.TestID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.TestID != "" && sub.TestID != filter.TestID {
				continue
			}
			if filter.StudentID != "" && sub.StudentID != filter.StudentID {
				continue
			}
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmitTime.Before(subs[j].SubmitTime) })
	return subs, nil
}

func (repo *examRepository) GetSubmission(ctx context.Context, id string) (exam.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return exam.Submission{}, exam.ErrSubmissionNotFound
}

func (repo *examRepository) GetSubmissionForStudent(ctx context.Context, testID, studentID string) (exam.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.TestID == testID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return exam.Submission{}, exam.ErrSubmissionNotFound
}

func (repo *examRepository) UpdateSubmission(ctx context.Context, sub exam.Submission) (exam.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return exam.Submission{}, exam.ErrSubmissionNotFound
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

// ------------------------------------------------------------------ answers

func (repo *examRepository) CreateAnswer(ctx context.Context, ans exam.Answer) (exam.Answer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ans.ID = uuid.New().String()
	repo.db.answers[ans.ID] = &ans
	return ans, nil
}

func (repo *examRepository) QueryAnswers(ctx context.Context, scope access.Scope, filter *exam.AnswerQueryFilter, ordering []core.DBOrdering) ([]exam.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	answers := make([]exam.Answer, 0, len(repo.db.answers))
	for _, ans := range repo.db.answers {
		sub, ok := repo.db.submissions[ans.SubmissionID]
		if !ok {
			continue
		}
		switch {
		case scope.All:
		case scope.StudentID != "":
			if sub.StudentID != scope.StudentID {
				continue
			}
		case scope.CourseInstructorID != "":
			if repo.testInstructor(ctx, sub.TestID) != scope.CourseInstructorID {
				continue
			}
		default:
			continue
		}
		if filter != nil && filter.SubmissionID != "" && ans.SubmissionID != filter.SubmissionID {
			continue
		}
		answers = append(answers, *ans)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers, nil
}

func (repo *examRepository) GetAnswer(ctx context.Context, id string) (exam.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ans, ok := repo.db.answers[id]; ok {
		return *ans, nil
	}
	return exam.Answer{}, exam.ErrAnswerNotFound
}

func (repo *examRepository) GetAnswerForQuestion(ctx context.Context, submissionID, questionID string) (exam.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ans := range repo.db.answers {
		if ans.SubmissionID == submissionID && ans.QuestionID == questionID {
			return *ans, nil
		}
	}
	return exam.Answer{}, exam.ErrAnswerNotFound
}

func (repo *examRepository) UpdateAnswer(ctx context.Context, ans exam.Answer) (exam.Answer, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.answers[ans.ID]; !ok {
		return exam.Answer{}, exam.ErrAnswerNotFound
	}
	repo.db.answers[ans.ID] = &ans
	return ans, nil
}
