package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func createTest(t *testing.T, courseID, createdByID string, totalMarks float64) exam.Test {
	t.Helper()
	tst, err := examRepo.CreateTest(ctx(), exam.Test{
		CourseID:    courseID,
		Title:       "Geography quiz",
		TotalMarks:  totalMarks,
		Status:      "active",
		CreatedByID: createdByID,
	})
	if err != nil {
		t.Fatalf("createTest() failed: %v", err)
	}
	return tst
}

func createQuestion(t *testing.T, testID, text, correct string, marks float64) exam.Question {
	t.Helper()
	qst, err := examRepo.CreateQuestion(ctx(), exam.Question{
		TestID:        testID,
		Text:          text,
		CorrectAnswer: correct,
		Marks:         marks,
	})
	if err != nil {
		t.Fatalf("createQuestion() failed: %v", err)
	}
	return qst
}

func Test_examApi_submitAndGrade(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	maths := createCourse(t, "Maths", teacher.ID)
	tst := createTest(t, maths.ID, teacher.ID, 10)
	capital := createQuestion(t, tst.ID, "Capital of France?", "Paris", 5)
	planet := createQuestion(t, tst.ID, "Largest planet?", "Jupiter", 5)

	t.Run("teacher cannot sit the test", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tests/submit", getToken(t, teacher),
			marchallObj(t, map[string]interface{}{"test": tst.ID}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	var sub exam.Submission
	t.Run("alias payload keys are accepted and graded", func(t *testing.T) {
		body := []byte(`{
			"test": "` + tst.ID + `",
			"answers": [
				{"question": "` + capital.ID + `", "studentAnswer": "  PARIS "},
				{"question_id": "` + planet.ID + `", "student_answer_text": "saturn"}
			]
		}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/tests/submit", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decodeBody(t, rec, &sub)
		assert.Equal(t, 5.0, sub.MarksObtained)
		assert.Equal(t, "C-", sub.Grade)
	})

	t.Run("resubmission updates the same row", func(t *testing.T) {
		body := []byte(`{
			"test": "` + tst.ID + `",
			"answers": [{"question": "` + planet.ID + `", "answer": "Jupiter"}]
		}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/tests/submit", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var again exam.Submission
		decodeBody(t, rec, &again)
		assert.Equal(t, sub.ID, again.ID)
		assert.Equal(t, 10.0, again.MarksObtained)
		assert.Equal(t, "A+", again.Grade)
	})

	t.Run("teacher corrects a single answer", func(t *testing.T) {
		body := []byte(`{"submission_id": "` + sub.ID + `", "question": "` + capital.ID + `", "student_answer": "lyon"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/test-answers", getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var ans exam.Answer
		decodeBody(t, rec, &ans)
		assert.False(t, ans.IsCorrect)

		refreshed, err := examRepo.GetSubmission(ctx(), sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, refreshed.MarksObtained)
		assert.Equal(t, "C-", refreshed.Grade)

		// correcting by answer id works too
		req, rec = newAuthRequest(http.MethodPut, "/v1/test-answers/"+ans.ID, getToken(t, teacher),
			[]byte(`{"answer": "paris"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		refreshed, err = examRepo.GetSubmission(ctx(), sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, refreshed.MarksObtained)
	})
}

func Test_examApi_questionVisibility(t *testing.T) {
	app := setup(t)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@school.test", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student1", "student@school.test", "", user.RoleStudent, true)

	maths := createCourse(t, "Maths", teacher.ID)
	tst := createTest(t, maths.ID, teacher.ID, 5)
	createQuestion(t, tst.ID, "Capital of France?", "Paris", 5)

	keyOf := func(token string) string {
		req, rec := newAuthRequest(http.MethodGet, "/v1/questions?test="+tst.ID, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var questions []exam.Question
		decodeBody(t, rec, &questions)
		require.Len(t, questions, 1)
		return questions[0].CorrectAnswer
	}

	assert.Empty(t, keyOf(""), "anonymous must not see the answer key")
	assert.Empty(t, keyOf(getToken(t, student)), "students must not see the answer key")
	assert.Equal(t, "Paris", keyOf(getToken(t, teacher)))
}
