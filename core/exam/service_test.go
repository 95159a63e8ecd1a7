package exam_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

var ctx = context.Background()

type testEnv struct {
	svc       exam.ServiceInterface
	courseSvc course.ServiceInterface
	repo      exam.Repository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewExamRepository(db)
	return testEnv{
		svc:       exam.NewService(repo),
		courseSvc: course.NewService(dummydb.NewCourseRepository(db)),
		repo:      repo,
	}
}

func newUser(role string) *user.User {
	return &user.User{ID: uuid.New().String(), Role: role}
}

// createTest sets up a test with one question per (correctAnswer, marks) pair.
func (env testEnv) createTest(t *testing.T, teacher *user.User, totalMarks float64, questions ...exam.NewQuestion) (exam.Test, []exam.Question) {
	t.Helper()
	crs, err := env.courseSvc.CreateCourse(ctx, teacher, course.NewCourse{Title: "Geography"})
	require.NoError(t, err)
	tst, err := env.svc.CreateTest(ctx, teacher, exam.NewTest{CourseID: crs.ID, Title: "Capitals", TotalMarks: totalMarks})
	require.NoError(t, err)

	created := make([]exam.Question, 0, len(questions))
	for i, nq := range questions {
		nq.TestID = tst.ID
		nq.OrderIndex = i
		if nq.Text == "" {
			nq.Text = fmt.Sprintf("Question %d", i+1)
		}
		qst, err := env.svc.CreateQuestion(ctx, teacher, nq)
		require.NoError(t, err)
		created = append(created, qst)
	}
	return tst, created
}

func TestService_Submit_AutoGrading(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	tst, qs := env.createTest(t, teacher, 10,
		exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5},
		exam.NewQuestion{CorrectAnswer: "Nairobi", Marks: 5},
	)

	sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
		TestID: tst.ID,
		Answers: []exam.AnswerInput{
			{QuestionID: qs[0].ID, StudentAnswer: "  PARIS "}, // whitespace and case ignored
			{QuestionID: qs[1].ID, StudentAnswer: "Mombasa"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, sub.MarksObtained)
	assert.Equal(t, "C-", sub.Grade) // 50%
	assert.Equal(t, exam.SubmissionSubmitted, sub.Status)

	answers, err := env.svc.QueryAnswers(ctx, student, &exam.AnswerQueryFilter{SubmissionID: sub.ID}, nil)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	for _, ans := range answers {
		require.NotNil(t, ans.MarksAwarded)
		if ans.QuestionID == qs[0].ID {
			assert.True(t, ans.IsCorrect)
			assert.Equal(t, 5.0, *ans.MarksAwarded) // full marks
		} else {
			assert.False(t, ans.IsCorrect)
			assert.Zero(t, *ans.MarksAwarded) // or nothing
		}
	}
}

func TestService_Submit_EdgeCases(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	t.Run("empty expected answer never matches", func(t *testing.T) {
		tst, qs := env.createTest(t, teacher, 5, exam.NewQuestion{CorrectAnswer: "   ", Marks: 5})
		sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
			TestID:  tst.ID,
			Answers: []exam.AnswerInput{{QuestionID: qs[0].ID, StudentAnswer: ""}},
		})
		require.NoError(t, err)
		assert.Zero(t, sub.MarksObtained)
	})
	t.Run("unknown question skipped", func(t *testing.T) {
		tst, qs := env.createTest(t, teacher, 5, exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5})
		sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
			TestID: tst.ID,
			Answers: []exam.AnswerInput{
				{QuestionID: uuid.New().String(), StudentAnswer: "stray"},
				{QuestionID: qs[0].ID, StudentAnswer: "paris"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 5.0, sub.MarksObtained)

		answers, err := env.svc.QueryAnswers(ctx, student, &exam.AnswerQueryFilter{SubmissionID: sub.ID}, nil)
		require.NoError(t, err)
		assert.Len(t, answers, 1)
	})
	t.Run("zero total marks yields F at zero percent", func(t *testing.T) {
		tst, qs := env.createTest(t, teacher, 0, exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5})
		sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
			TestID:  tst.ID,
			Answers: []exam.AnswerInput{{QuestionID: qs[0].ID, StudentAnswer: "Paris"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 5.0, sub.MarksObtained)
		assert.Equal(t, "F", sub.Grade)
	})
	t.Run("teacher cannot sit a test", func(t *testing.T) {
		tst, _ := env.createTest(t, teacher, 5, exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5})
		_, err := env.svc.Submit(ctx, teacher, exam.SubmitTest{TestID: tst.ID})
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestService_Submit_GradeBoundaries(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)

	// 100 one-mark questions, all expecting "yes"
	questions := make([]exam.NewQuestion, 100)
	for i := range questions {
		questions[i] = exam.NewQuestion{CorrectAnswer: "yes", Marks: 1}
	}
	tst, qs := env.createTest(t, teacher, 100, questions...)

	tests := []struct {
		correct int
		grade   string
	}{
		{100, "A+"},
		{90, "A+"},
		{89, "A"},
		{85, "A"},
		{80, "A-"},
		{75, "B+"},
		{70, "B"},
		{65, "B-"},
		{60, "C+"},
		{55, "C"},
		{54, "C-"},
		{50, "C-"},
		{49, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d%% is %s", tt.correct, tt.grade), func(t *testing.T) {
			student := newUser(user.RoleStudent)
			answers := make([]exam.AnswerInput, len(qs))
			for i, q := range qs {
				answer := "no"
				if i < tt.correct {
					answer = "yes"
				}
				answers[i] = exam.AnswerInput{QuestionID: q.ID, StudentAnswer: answer}
			}
			sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{TestID: tst.ID, Answers: answers})
			require.NoError(t, err)
			assert.Equal(t, float64(tt.correct), sub.MarksObtained)
			assert.Equal(t, tt.grade, sub.Grade)
		})
	}
}

func TestService_Resubmission(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	tst, qs := env.createTest(t, teacher, 10,
		exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5},
		exam.NewQuestion{CorrectAnswer: "Nairobi", Marks: 5},
	)

	first, err := env.svc.Submit(ctx, student, exam.SubmitTest{
		TestID:  tst.ID,
		Answers: []exam.AnswerInput{{QuestionID: qs[0].ID, StudentAnswer: "Rome"}},
	})
	require.NoError(t, err)
	assert.Zero(t, first.MarksObtained)

	again, err := env.svc.Submit(ctx, student, exam.SubmitTest{
		TestID: tst.ID,
		Answers: []exam.AnswerInput{
			{QuestionID: qs[0].ID, StudentAnswer: "Paris"},
			{QuestionID: qs[1].ID, StudentAnswer: "Nairobi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID) // same row, updated
	assert.Equal(t, 10.0, again.MarksObtained)
	assert.Equal(t, "A+", again.Grade)

	subs, err := env.svc.QuerySubmissions(ctx, student, nil, nil)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	answers, err := env.svc.QueryAnswers(ctx, student, &exam.AnswerQueryFilter{SubmissionID: again.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, answers, 2) // answers upserted per question, not duplicated
}

func TestService_SaveAnswer(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	tst, qs := env.createTest(t, teacher, 10,
		exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5},
		exam.NewQuestion{CorrectAnswer: "Nairobi", Marks: 5},
	)
	sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
		TestID:  tst.ID,
		Answers: []exam.AnswerInput{{QuestionID: qs[0].ID, StudentAnswer: "Rome"}},
	})
	require.NoError(t, err)

	t.Run("correction recomputes the aggregate", func(t *testing.T) {
		ans, err := env.svc.SaveAnswer(ctx, student, exam.SaveAnswer{
			SubmissionID: sub.ID, QuestionID: qs[0].ID, StudentAnswer: "Paris",
		})
		require.NoError(t, err)
		assert.True(t, ans.IsCorrect)

		got, err := env.svc.GetSubmission(ctx, student, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, got.MarksObtained)
		assert.Equal(t, "C-", got.Grade)
	})
	t.Run("unknown question is an error", func(t *testing.T) {
		_, err := env.svc.SaveAnswer(ctx, student, exam.SaveAnswer{
			SubmissionID: sub.ID, QuestionID: uuid.New().String(), StudentAnswer: "x",
		})
		assert.Equal(t, exam.ErrQuestionNotFound, err)
	})
	t.Run("course teacher may correct an answer", func(t *testing.T) {
		ans, err := env.svc.SaveAnswer(ctx, teacher, exam.SaveAnswer{
			SubmissionID: sub.ID, QuestionID: qs[1].ID, StudentAnswer: "Nairobi",
		})
		require.NoError(t, err)
		assert.True(t, ans.IsCorrect)
	})
	t.Run("foreign student cannot touch it", func(t *testing.T) {
		_, err := env.svc.SaveAnswer(ctx, newUser(user.RoleStudent), exam.SaveAnswer{
			SubmissionID: sub.ID, QuestionID: qs[0].ID, StudentAnswer: "Paris",
		})
		assert.Equal(t, exam.ErrSubmissionNotFound, err)
	})
}

func TestService_Recalculate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	tst, qs := env.createTest(t, teacher, 10, exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5})
	sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{
		TestID:  tst.ID,
		Answers: []exam.AnswerInput{{QuestionID: qs[0].ID, StudentAnswer: "Paris"}},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := env.svc.Recalculate(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, got.MarksObtained)
		assert.Equal(t, "C-", got.Grade)
	}
}

func TestService_Recalculate_InfersUnrecordedMarks(t *testing.T) {
	env := newTestEnv(t)
	teacher := newUser(user.RoleTeacher)
	student := newUser(user.RoleStudent)

	tst, qs := env.createTest(t, teacher, 10,
		exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5},
		exam.NewQuestion{CorrectAnswer: "Nairobi", Marks: 5},
	)
	sub, err := env.svc.Submit(ctx, student, exam.SubmitTest{TestID: tst.ID})
	require.NoError(t, err)

	// answer rows with no recorded marks, as left behind by older writers
	_, err = env.repo.CreateAnswer(ctx, exam.Answer{
		SubmissionID: sub.ID, QuestionID: qs[0].ID, StudentAnswer: "  paris  ",
	})
	require.NoError(t, err)
	_, err = env.repo.CreateAnswer(ctx, exam.Answer{
		SubmissionID: sub.ID, QuestionID: qs[1].ID, StudentAnswer: "Lagos",
	})
	require.NoError(t, err)

	got, err := env.svc.Recalculate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.MarksObtained)

	// the question's current key wins over any stale correctness flag
	qs[1].CorrectAnswer = "Lagos"
	_, err = env.repo.UpdateQuestion(ctx, qs[1])
	require.NoError(t, err)

	got, err = env.svc.Recalculate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.MarksObtained)
	assert.Equal(t, "A+", got.Grade)
}

func TestSubmissionVisibility(t *testing.T) {
	env := newTestEnv(t)
	t1 := newUser(user.RoleTeacher)
	t2 := newUser(user.RoleTeacher)
	s1 := newUser(user.RoleStudent)
	s2 := newUser(user.RoleStudent)

	tst1, qs1 := env.createTest(t, t1, 5, exam.NewQuestion{CorrectAnswer: "Paris", Marks: 5})
	tst2, qs2 := env.createTest(t, t2, 5, exam.NewQuestion{CorrectAnswer: "Nairobi", Marks: 5})

	sub1, err := env.svc.Submit(ctx, s1, exam.SubmitTest{
		TestID: tst1.ID, Answers: []exam.AnswerInput{{QuestionID: qs1[0].ID, StudentAnswer: "Paris"}},
	})
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, s2, exam.SubmitTest{
		TestID: tst2.ID, Answers: []exam.AnswerInput{{QuestionID: qs2[0].ID, StudentAnswer: "Nairobi"}},
	})
	require.NoError(t, err)

	t.Run("student sees own submissions only", func(t *testing.T) {
		subs, err := env.svc.QuerySubmissions(ctx, s1, nil, nil)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, sub1.ID, subs[0].ID)
	})
	t.Run("teacher sees own course submissions only", func(t *testing.T) {
		subs, err := env.svc.QuerySubmissions(ctx, t1, nil, nil)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, tst1.ID, subs[0].TestID)

		_, err = env.svc.GetSubmission(ctx, t2, sub1.ID)
		assert.Equal(t, exam.ErrSubmissionNotFound, err)
	})
	t.Run("admin sees all", func(t *testing.T) {
		subs, err := env.svc.QuerySubmissions(ctx, newUser(user.RoleAdmin), nil, nil)
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})
	t.Run("teacher tests scoped by creator", func(t *testing.T) {
		tests, err := env.svc.QueryTests(ctx, t1, nil, nil)
		require.NoError(t, err)
		require.Len(t, tests, 1)
		assert.Equal(t, tst1.ID, tests[0].ID)
	})
}

func TestAnswerPayloadAliases(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    exam.AnswerInput
	}{
		{"student_answer", `{"question":"q1","student_answer":"Paris"}`, exam.AnswerInput{QuestionID: "q1", StudentAnswer: "Paris"}},
		{"studentAnswer", `{"question":"q1","studentAnswer":"Paris"}`, exam.AnswerInput{QuestionID: "q1", StudentAnswer: "Paris"}},
		{"answer", `{"question":"q1","answer":"Paris"}`, exam.AnswerInput{QuestionID: "q1", StudentAnswer: "Paris"}},
		{"student_answer_text", `{"question":"q1","student_answer_text":"Paris"}`, exam.AnswerInput{QuestionID: "q1", StudentAnswer: "Paris"}},
		{"question_id", `{"question_id":"q1","answer":"Paris"}`, exam.AnswerInput{QuestionID: "q1", StudentAnswer: "Paris"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got exam.AnswerInput
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("submission_id alias", func(t *testing.T) {
		var got exam.SaveAnswer
		require.NoError(t, json.Unmarshal([]byte(`{"submission_id":"s1","question":"q1","answer":"Paris"}`), &got))
		assert.Equal(t, exam.SaveAnswer{SubmissionID: "s1", QuestionID: "q1", StudentAnswer: "Paris"}, got)
	})
}
