package exam

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
	ErrTestNotFound       = errors.New("test not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAnswerNotFound     = errors.New("answer not found")
)

type (
	Repository interface {
		CreateTest(ctx context.Context, tst Test) (Test, error)
		QueryTests(ctx context.Context, scope access.Scope, filter *TestQueryFilter, ordering []core.DBOrdering) ([]Test, error)
		GetTest(ctx context.Context, id string) (Test, error)
		UpdateTest(ctx context.Context, tst Test) (Test, error)
		DeleteTestsByID(ctx context.Context, ids ...string) error

		CreateQuestion(ctx context.Context, qst Question) (Question, error)
		QueryQuestions(ctx context.Context, scope access.Scope, filter *QuestionQueryFilter, ordering []core.DBOrdering) ([]Question, error)
		GetQuestion(ctx context.Context, id string) (Question, error)
		UpdateQuestion(ctx context.Context, qst Question) (Question, error)
		DeleteQuestionsByID(ctx context.Context, ids ...string) error

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, scope access.Scope, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetSubmissionForStudent(ctx context.Context, testID, studentID string) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)

		CreateAnswer(ctx context.Context, ans Answer) (Answer, error)
		QueryAnswers(ctx context.Context, scope access.Scope, filter *AnswerQueryFilter, ordering []core.DBOrdering) ([]Answer, error)
		GetAnswer(ctx context.Context, id string) (Answer, error)
		GetAnswerForQuestion(ctx context.Context, submissionID, questionID string) (Answer, error)
		UpdateAnswer(ctx context.Context, ans Answer) (Answer, error)

		// CourseInstructor resolves a course's instructor id ("" when unset).
		CourseInstructor(ctx context.Context, courseID string) (string, error)
	}

	ServiceInterface interface {
		CreateTest(ctx context.Context, actor *user.User, nt NewTest) (Test, error)
		QueryTests(ctx context.Context, actor *user.User, filter *TestQueryFilter, ordering []core.DBOrdering) ([]Test, error)
		GetTest(ctx context.Context, actor *user.User, id string) (Test, error)
		UpdateTest(ctx context.Context, actor *user.User, id string, ut UpdateTest) (Test, error)
		DeleteTests(ctx context.Context, actor *user.User, ids ...string) error

		CreateQuestion(ctx context.Context, actor *user.User, nq NewQuestion) (Question, error)
		QueryQuestions(ctx context.Context, actor *user.User, filter *QuestionQueryFilter, ordering []core.DBOrdering) ([]Question, error)
		UpdateQuestion(ctx context.Context, actor *user.User, id string, uq UpdateQuestion) (Question, error)
		DeleteQuestions(ctx context.Context, actor *user.User, ids ...string) error

		Submit(ctx context.Context, actor *user.User, st SubmitTest) (Submission, error)
		SaveAnswer(ctx context.Context, actor *user.User, sa SaveAnswer) (Answer, error)
		UpdateAnswer(ctx context.Context, actor *user.User, id string, sa SaveAnswer) (Answer, error)
		QuerySubmissions(ctx context.Context, actor *user.User, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		GetSubmission(ctx context.Context, actor *user.User, id string) (Submission, error)
		QueryAnswers(ctx context.Context, actor *user.User, filter *AnswerQueryFilter, ordering []core.DBOrdering) ([]Answer, error)

		Recalculate(ctx context.Context, submissionID string) (Submission, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

// -------------------------------------------------------------------- tests

func (svc *service) CreateTest(ctx context.Context, actor *user.User, nt NewTest) (Test, error) {
	if err := access.CanCreate(actor, access.EntityTest); err != nil {
		return Test{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateTest(ctx, Test{
		CourseID:        nt.CourseID,
		Title:           nt.Title,
		TestType:        nt.TestType,
		ScheduledDate:   nt.ScheduledDate,
		DurationMinutes: nt.DurationMinutes,
		TotalMarks:      nt.TotalMarks,
		Status:          nt.Status,
		CreatedByID:     access.Attribution(actor, access.EntityTest).CreatedByID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *service) QueryTests(ctx context.Context, actor *user.User, filter *TestQueryFilter, ordering []core.DBOrdering) ([]Test, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryTests(ctx, access.Resolve(actor, access.EntityTest), filter, ordering)
}

func (svc *service) GetTest(ctx context.Context, actor *user.User, id string) (Test, error) {
	tst, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if scope := access.Resolve(actor, access.EntityTest); !scope.All && tst.CreatedByID != scope.CreatedByID {
		return Test{}, ErrTestNotFound
	}
	return tst, nil
}

func (svc *service) UpdateTest(ctx context.Context, actor *user.User, id string, ut UpdateTest) (Test, error) {
	tst, err := svc.GetTest(ctx, actor, id)
	if err != nil {
		return Test{}, err
	}
	if err = svc.canMutate(actor, access.EntityTest, tst.CreatedByID, ErrTestNotFound); err != nil {
		return Test{}, err
	}

	if ut.Title != "" {
		tst.Title = ut.Title
	}
	if ut.TestType != "" {
		tst.TestType = ut.TestType
	}
	if ut.ScheduledDate != nil {
		tst.ScheduledDate = ut.ScheduledDate
	}
	if ut.DurationMinutes != nil {
		tst.DurationMinutes = *ut.DurationMinutes
	}
	if ut.TotalMarks != nil {
		tst.TotalMarks = *ut.TotalMarks
	}
	if ut.Status != "" {
		tst.Status = ut.Status
	}
	tst.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTest(ctx, tst)
}

func (svc *service) DeleteTests(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		tst, err := svc.GetTest(ctx, actor, id)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, access.EntityTest, tst.CreatedByID, ErrTestNotFound); err != nil {
			return err
		}
	}
	return svc.repo.DeleteTestsByID(ctx, ids...)
}

// ---------------------------------------------------------------- questions

func (svc *service) CreateQuestion(ctx context.Context, actor *user.User, nq NewQuestion) (Question, error) {
	if err := access.CanCreate(actor, access.EntityQuestion); err != nil {
		return Question{}, err
	}
	tst, err := svc.repo.GetTest(ctx, nq.TestID)
	if err != nil {
		return Question{}, err
	}
	if err = svc.canMutate(actor, access.EntityTest, tst.CreatedByID, ErrTestNotFound); err != nil {
		return Question{}, err
	}
	return svc.repo.CreateQuestion(ctx, Question{
		TestID:        tst.ID,
		Type:          nq.Type,
		Text:          nq.Text,
		Options:       nq.Options,
		CorrectAnswer: nq.CorrectAnswer,
		Marks:         nq.Marks,
		OrderIndex:    nq.OrderIndex,
	})
}

func (svc *service) QueryQuestions(ctx context.Context, actor *user.User, filter *QuestionQueryFilter, ordering []core.DBOrdering) ([]Question, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryQuestions(ctx, access.Resolve(actor, access.EntityQuestion), filter, ordering)
}

func (svc *service) UpdateQuestion(ctx context.Context, actor *user.User, id string, uq UpdateQuestion) (Question, error) {
	qst, err := svc.repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	tst, err := svc.repo.GetTest(ctx, qst.TestID)
	if err != nil {
		return Question{}, err
	}
	if err = svc.canMutate(actor, access.EntityQuestion, tst.CreatedByID, ErrQuestionNotFound); err != nil {
		return Question{}, err
	}

	if uq.Type != "" {
		qst.Type = uq.Type
	}
	if uq.Text != "" {
		qst.Text = uq.Text
	}
	if uq.Options != nil {
		qst.Options = uq.Options
	}
	if uq.CorrectAnswer != nil {
		qst.CorrectAnswer = *uq.CorrectAnswer
	}
	if uq.Marks != nil {
		qst.Marks = *uq.Marks
	}
	if uq.OrderIndex != nil {
		qst.OrderIndex = *uq.OrderIndex
	}
	return svc.repo.UpdateQuestion(ctx, qst)
}

func (svc *service) DeleteQuestions(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		qst, err := svc.repo.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		tst, err := svc.repo.GetTest(ctx, qst.TestID)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, access.EntityQuestion, tst.CreatedByID, ErrQuestionNotFound); err != nil {
			return err
		}
	}
	return svc.repo.DeleteQuestionsByID(ctx, ids...)
}

// -------------------------------------------------------------- submissions

// Submit records a student's whole attempt in one call: the submission row is
// upserted by (test, student), every answer is auto-graded and upserted by
// (submission, question), and the aggregate marks and letter grade are
// recomputed from the full answer set. Answers referencing unknown questions
// are skipped; the rest of the attempt still counts.
func (svc *service) Submit(ctx context.Context, actor *user.User, st SubmitTest) (Submission, error) {
	if err := access.CanCreate(actor, access.EntityTestSubmission); err != nil {
		return Submission{}, err
	}
	tst, err := svc.repo.GetTest(ctx, st.TestID)
	if err != nil {
		return Submission{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, access.Scope{All: true}, &QuestionQueryFilter{TestID: tst.ID}, nil)
	if err != nil {
		return Submission{}, err
	}
	qByID := make(map[string]Question, len(questions))
	for _, q := range questions {
		qByID[q.ID] = q
	}

	now := time.Now().UTC()
	sub, err := svc.repo.GetSubmissionForStudent(ctx, tst.ID, actor.ID)
	switch errors.Cause(err) {
	case nil:
		sub.SubmitTime = now
	case ErrSubmissionNotFound:
		sub = Submission{TestID: tst.ID, StudentID: actor.ID, Status: SubmissionSubmitted, SubmitTime: now}
		if sub, err = svc.repo.CreateSubmission(ctx, sub); err != nil {
			return Submission{}, err
		}
	default:
		return Submission{}, err
	}

	for _, in := range st.Answers {
		q, ok := qByID[in.QuestionID]
		if !ok {
			continue
		}
		if err = svc.upsertAnswer(ctx, sub.ID, q, in.StudentAnswer); err != nil {
			return Submission{}, err
		}
	}
	return svc.recalculate(ctx, sub, tst)
}

// SaveAnswer grades and upserts one answer, then recomputes the submission's
// aggregate. Unlike bulk submission, an unknown question here is an error.
func (svc *service) SaveAnswer(ctx context.Context, actor *user.User, sa SaveAnswer) (Answer, error) {
	sub, err := svc.GetSubmission(ctx, actor, sa.SubmissionID)
	if err != nil {
		return Answer{}, err
	}
	tst, err := svc.repo.GetTest(ctx, sub.TestID)
	if err != nil {
		return Answer{}, err
	}

	owner, err := svc.effectiveOwner(ctx, actor, tst.CourseID, sub.StudentID)
	if err != nil {
		return Answer{}, err
	}
	if err = svc.canMutate(actor, access.EntityTestAnswer, owner, ErrSubmissionNotFound); err != nil {
		return Answer{}, err
	}

	qst, err := svc.repo.GetQuestion(ctx, sa.QuestionID)
	if err != nil || qst.TestID != tst.ID {
		return Answer{}, ErrQuestionNotFound
	}
	if err = svc.upsertAnswer(ctx, sub.ID, qst, sa.StudentAnswer); err != nil {
		return Answer{}, err
	}
	if _, err = svc.recalculate(ctx, sub, tst); err != nil {
		return Answer{}, err
	}
	return svc.repo.GetAnswerForQuestion(ctx, sub.ID, qst.ID)
}

// UpdateAnswer corrects an existing answer addressed by its own id.
func (svc *service) UpdateAnswer(ctx context.Context, actor *user.User, id string, sa SaveAnswer) (Answer, error) {
	ans, err := svc.repo.GetAnswer(ctx, id)
	if err != nil {
		return Answer{}, err
	}
	sa.SubmissionID = ans.SubmissionID
	sa.QuestionID = ans.QuestionID
	return svc.SaveAnswer(ctx, actor, sa)
}

func (svc *service) QuerySubmissions(ctx context.Context, actor *user.User, filter *SubmissionQueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QuerySubmissions(ctx, access.Resolve(actor, access.EntityTestSubmission), filter, ordering)
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

func (svc *service) QueryAnswers(ctx context.Context, actor *user.User, filter *AnswerQueryFilter, ordering []core.DBOrdering) ([]Answer, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryAnswers(ctx, access.Resolve(actor, access.EntityTestAnswer), filter, ordering)
}

// Recalculate recomputes a submission's aggregate from its stored answers.
// It never patches incrementally, so running it twice is a no-op; corrective
// sweeps rely on that.
func (svc *service) Recalculate(ctx context.Context, submissionID string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	tst, err := svc.repo.GetTest(ctx, sub.TestID)
	if err != nil {
		return Submission{}, err
	}
	return svc.recalculate(ctx, sub, tst)
}

// ------------------------------------------------------------------ helpers

func (svc *service) upsertAnswer(ctx context.Context, submissionID string, qst Question, studentAnswer string) error {
	correct := Correct(studentAnswer, qst.CorrectAnswer)
	marks := 0.0 // full marks or nothing
	if correct {
		marks = qst.Marks
	}

	ans, err := svc.repo.GetAnswerForQuestion(ctx, submissionID, qst.ID)
	switch errors.Cause(err) {
	case nil:
		ans.StudentAnswer = studentAnswer
		ans.IsCorrect = correct
		ans.MarksAwarded = &marks
		_, err = svc.repo.UpdateAnswer(ctx, ans)
	case ErrAnswerNotFound:
		_, err = svc.repo.CreateAnswer(ctx, Answer{
			SubmissionID:  submissionID,
			QuestionID:    qst.ID,
			StudentAnswer: studentAnswer,
			IsCorrect:     correct,
			MarksAwarded:  &marks,
		})
	}
	return err
}

func (svc *service) recalculate(ctx context.Context, sub Submission, tst Test) (Submission, error) {
	answers, err := svc.repo.QueryAnswers(ctx, access.Scope{All: true}, &AnswerQueryFilter{SubmissionID: sub.ID}, nil)
	if err != nil {
		return Submission{}, err
	}

	var total float64
	for _, ans := range answers {
		if ans.MarksAwarded != nil {
			total += *ans.MarksAwarded
			continue
		}
		// marks never recorded: re-match against the question's current key
		qst, err := svc.repo.GetQuestion(ctx, ans.QuestionID)
		if err != nil {
			return Submission{}, errors.Wrapf(err, "resolving question %s", ans.QuestionID)
		}
		if Correct(ans.StudentAnswer, qst.CorrectAnswer) {
			total += qst.Marks
		}
	}

	sub.MarksObtained = total
	sub.Grade = core.LetterGrade(core.Percent(total, tst.TotalMarks))
	if sub.Status == "" {
		sub.Status = SubmissionSubmitted
	}
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubmission(ctx, sub)
}

func (svc *service) submissionVisible(ctx context.Context, actor *user.User, sub Submission) (bool, error) {
	scope := access.Resolve(actor, access.EntityTestSubmission)
	switch {
	case scope.All:
		return true, nil
	case scope.StudentID != "":
		return sub.StudentID == scope.StudentID, nil
	case scope.CourseInstructorID != "":
		tst, err := svc.repo.GetTest(ctx, sub.TestID)
		if err != nil {
			if errors.Cause(err) == ErrTestNotFound {
				return false, nil
			}
			return false, err
		}
		instructor, err := svc.repo.CourseInstructor(ctx, tst.CourseID)
		if err != nil {
			return false, err
		}
		return instructor == scope.CourseInstructorID, nil
	}
	return false, nil
}

func (svc *service) effectiveOwner(ctx context.Context, actor *user.User, courseID, studentID string) (string, error) {
	if actor == nil || actor.IsStudent() {
		return studentID, nil
	}
	return svc.repo.CourseInstructor(ctx, courseID)
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
