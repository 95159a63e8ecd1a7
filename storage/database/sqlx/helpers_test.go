package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_isUniqueViolation(t *testing.T) {
	uniq := &pq.Error{Code: "23505", Constraint: "enrollment_course_id_student_id_key"}

	assert.True(t, isUniqueViolation(uniq))
	assert.True(t, isUniqueViolation(errors.Wrap(uniq, "inserting enrollment")))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"})) // FK violation
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}
