package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
	testutil "github.com/trezcool/shule/tests"
)

var (
	usrRepo        user.Repository
	courseRepo     course.Repository
	assignmentRepo assignment.Repository
)

func setup(t *testing.T) *commandLine {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	courseRepo = dummydb.NewCourseRepository(db)
	assignmentRepo = dummydb.NewAssignmentRepository(db)

	// start CLI
	return &commandLine{
		usrRepo:       usrRepo,
		courseSvc:     course.NewService(courseRepo),
		assignmentSvc: assignment.NewService(assignmentRepo),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe123", "awe@test.cd", "mdr", user.RoleStudent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cret"), nil }

	if err := cli.run([]string{"admin", "adduser", "-username", "root01", "-email", "root@test.cd", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "root01"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if !usr.IsAdmin() {
		t.Errorf("user role = %s, want admin", usr.Role)
	}
	if err := usr.CheckPassword("s3cret"); err != nil {
		t.Error("password not set")
	}

	// running again updates the same account
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("n3wpass"), nil }
	if err := cli.run([]string{"admin", "adduser", "-username", "root01", "-email", "root@test.cd", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "root01"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if refreshed.ID != usr.ID {
		t.Error("adduser created a duplicate account")
	}
	if err := refreshed.CheckPassword("n3wpass"); err != nil {
		t.Error("password not updated")
	}
}

func Test_commandLine_sweeps(t *testing.T) {
	cli := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher1", "teacher@test.cd", "", user.RoleTeacher, true)
	crs, err := courseRepo.CreateCourse(context.Background(), course.Course{
		Title:        "Algebra",
		Status:       course.StatusActive,
		InstructorID: teacher.ID,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	if _, err = courseRepo.CreateLecture(context.Background(), course.Lecture{CourseID: crs.ID, Title: "Intro"}); err != nil {
		t.Fatalf("CreateLecture() failed: %v", err)
	}

	pastDue := time.Now().UTC().Add(-time.Hour)
	if _, err = assignmentRepo.CreateAssignment(context.Background(), assignment.Assignment{
		CourseID: crs.ID,
		Title:    "Homework 1",
		Status:   assignment.StatusActive,
		DueDate:  &pastDue,
	}); err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}

	if err := cli.run([]string{"admin", "syncenrollments", "-course", crs.ID}); err != nil {
		t.Fatalf("cli.run(syncenrollments) failed: %v", err)
	}
	refreshed, err := courseRepo.GetCourse(context.Background(), crs.ID)
	if err != nil {
		t.Fatalf("GetCourse() failed: %v", err)
	}
	if refreshed.TotalLectures != 1 {
		t.Errorf("TotalLectures = %d, want 1", refreshed.TotalLectures)
	}

	if err := cli.run([]string{"admin", "sweepoverdue"}); err != nil {
		t.Fatalf("cli.run(sweepoverdue) failed: %v", err)
	}
	asgs, err := assignmentRepo.QueryAssignments(context.Background(), access.Scope{All: true}, nil, nil)
	if err != nil {
		t.Fatalf("QueryAssignments() failed: %v", err)
	}
	if len(asgs) != 1 || asgs[0].Status != assignment.StatusOverdue {
		t.Errorf("assignment status = %v, want overdue", asgs)
	}
}
