package assignment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/user"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
	testutil "github.com/trezcool/masomo-lms/tests"
)

type fixtures struct {
	app     *testutil.App
	course  course.Course
	student user.User
}

func setup(t *testing.T) fixtures {
	app := testutil.NewApp()
	ins := testutil.CreateUser(t, app.UserRepo, "Ins", "ins", "ins@masomo.test", "", []string{user.RoleInstructor}, true)
	stu := testutil.CreateUser(t, app.UserRepo, "Stu Dent", "stu", "stu@masomo.test", "", []string{user.RoleStudent}, true)
	c, _ := testutil.CreateCourse(t, app, ins, "Physics")
	if _, err := app.CourseSvc.Enroll(context.Background(), c, stu.ID, ins); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return fixtures{app: app, course: c, student: stu}
}

func createAssignment(t *testing.T, f fixtures, na assignment.NewAssignment) assignment.Assignment {
	if na.Title == "" {
		na.Title = "Homework"
	}
	if na.Type == "" {
		na.Type = assignment.TypeFile
	}
	if na.PointsPossible == 0 {
		na.PointsPossible = 100
	}
	na.Published = true
	a, err := f.app.AssignmentSvc.Create(context.Background(), f.course.ID, na)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return a
}

func submitFile(t *testing.T, f fixtures, a assignment.Assignment) assignment.SubmissionView {
	w := assignment.Work{Files: []attachment.File{attachment.FileFromBytes("essay.pdf", []byte("%PDF"))}}
	sv, err := f.app.AssignmentSvc.Submit(context.Background(), a, f.student, w)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return sv
}

func isValidation(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func TestService_RecordGrade(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name      string
		na        assignment.NewAssignment
		raw       float64
		wantGrade float64
		wantLate  bool
	}{
		{
			name:      "late submission is penalized",
			na:        assignment.NewAssignment{DueDate: &past, AllowLateSubmissions: true, LatePenaltyPercentage: 20},
			raw:       80,
			wantGrade: 64,
			wantLate:  true,
		},
		{
			name:      "on time submission keeps the raw grade",
			na:        assignment.NewAssignment{DueDate: &future, AllowLateSubmissions: true, LatePenaltyPercentage: 20},
			raw:       80,
			wantGrade: 80,
		},
		{
			name:      "no due date",
			na:        assignment.NewAssignment{LatePenaltyPercentage: 50},
			raw:       100,
			wantGrade: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			a := createAssignment(t, f, tt.na)
			sv := submitFile(t, f, a)
			if sv.IsLate != tt.wantLate {
				t.Fatalf("IsLate = %v; want %v", sv.IsLate, tt.wantLate)
			}

			fb := "Good work"
			s, err := f.app.AssignmentSvc.RecordGrade(ctx, sv.ID, tt.raw, &fb)
			if err != nil {
				t.Fatalf("RecordGrade() unexpected error = %v", err)
			}
			if s.Status != assignment.StatusGraded {
				t.Errorf("Status = %q; want graded", s.Status)
			}
			if s.Grade == nil || *s.Grade != tt.wantGrade {
				t.Errorf("Grade = %v; want %v", s.Grade, tt.wantGrade)
			}
			if s.RawGrade == nil || *s.RawGrade != tt.raw {
				t.Errorf("RawGrade = %v; want %v", s.RawGrade, tt.raw)
			}

			sent := f.app.Mail.SentMessages()
			if len(sent) != 1 {
				t.Fatalf("sent %d emails; want 1", len(sent))
			}
			if sent[0].To[0].Address != f.student.Email || !strings.Contains(sent[0].TextContent, "Good work") {
				t.Errorf("email = %+v", sent[0])
			}
		})
	}
}

func TestService_RecordGrade_rejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := createAssignment(t, f, assignment.NewAssignment{})
	sv := submitFile(t, f, a)

	first, err := f.app.AssignmentSvc.RecordGrade(ctx, sv.ID, 70, nil)
	if err != nil {
		t.Fatalf("RecordGrade() unexpected error = %v", err)
	}

	for _, raw := range []float64{150, -1} {
		if _, err = f.app.AssignmentSvc.RecordGrade(ctx, sv.ID, raw, nil); !isValidation(err) {
			t.Errorf("RecordGrade(%v) error = %v; want ValidationError", raw, err)
		}
	}
	got, err := f.app.AssignmentSvc.GetSubmission(ctx, sv.ID)
	if err != nil {
		t.Fatalf("GetSubmission() unexpected error = %v", err)
	}
	if got.Status != first.Status || *got.Grade != *first.Grade {
		t.Errorf("submission changed: %+v; want %+v", got, first)
	}

	// re-grading overwrites
	if got, err = f.app.AssignmentSvc.RecordGrade(ctx, sv.ID, 90, nil); err != nil || *got.Grade != 90 {
		t.Errorf("RecordGrade() regrade = %v, %v", got.Grade, err)
	}

	if _, err = f.app.AssignmentSvc.RecordGrade(ctx, "nope", 10, nil); !core.IsNotFound(err) {
		t.Errorf("RecordGrade() error = %v; want NotFoundError", err)
	}
}

func TestService_RecordGrade_draft(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := createAssignment(t, f, assignment.NewAssignment{})

	w := assignment.Work{Files: []attachment.File{attachment.FileFromBytes("draft.pdf", []byte("%PDF"))}}
	sv, err := f.app.AssignmentSvc.SaveDraft(ctx, a, f.student, w)
	if err != nil {
		t.Fatalf("SaveDraft() unexpected error = %v", err)
	}
	if _, err = f.app.AssignmentSvc.RecordGrade(ctx, sv.ID, 10, nil); !isValidation(err) {
		t.Errorf("RecordGrade() error = %v; want ValidationError", err)
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	t.Run("draft then submit keeps files", func(t *testing.T) {
		f := setup(t)
		a := createAssignment(t, f, assignment.NewAssignment{})

		w := assignment.Work{Files: []attachment.File{attachment.FileFromBytes("part1.pdf", []byte("1"))}}
		draft, err := f.app.AssignmentSvc.SaveDraft(ctx, a, f.student, w)
		if err != nil || draft.Status != assignment.StatusDraft || len(draft.Files) != 1 {
			t.Fatalf("SaveDraft() = %+v, %v", draft, err)
		}

		w = assignment.Work{Files: []attachment.File{attachment.FileFromBytes("part2.pdf", []byte("2"))}}
		sv, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, w)
		if err != nil {
			t.Fatalf("Submit() unexpected error = %v", err)
		}
		if sv.ID != draft.ID || sv.Status != assignment.StatusSubmitted || sv.SubmittedAt == nil || len(sv.Files) != 2 {
			t.Errorf("Submit() = %+v", sv)
		}

		if _, err = f.app.AssignmentSvc.SaveDraft(ctx, a, f.student, assignment.Work{}); !isValidation(err) {
			t.Errorf("SaveDraft() after submit error = %v; want ValidationError", err)
		}
	})

	t.Run("file assignment requires a file", func(t *testing.T) {
		f := setup(t)
		a := createAssignment(t, f, assignment.NewAssignment{})
		if _, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, assignment.Work{}); !isValidation(err) {
			t.Errorf("Submit() error = %v; want ValidationError", err)
		}
	})

	t.Run("late submission not allowed", func(t *testing.T) {
		f := setup(t)
		a := createAssignment(t, f, assignment.NewAssignment{DueDate: &past})
		w := assignment.Work{Files: []attachment.File{attachment.FileFromBytes("essay.pdf", []byte("%PDF"))}}
		if _, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, w); !isValidation(err) {
			t.Fatalf("Submit() error = %v; want ValidationError", err)
		}
		if paths := f.app.Disk.Paths(); len(paths) != 0 {
			t.Errorf("stored files = %v; want none", paths)
		}
		if _, err := f.app.AssignmentSvc.GetUserSubmission(ctx, a.ID, f.student.ID); !core.IsNotFound(err) {
			t.Errorf("GetUserSubmission() error = %v; want NotFoundError", err)
		}
	})

	t.Run("unpublished", func(t *testing.T) {
		f := setup(t)
		a := createAssignment(t, f, assignment.NewAssignment{})
		a.Published = false
		if _, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, assignment.Work{}); !core.IsAuthorization(err) {
			t.Errorf("Submit() error = %v; want AuthorizationError", err)
		}
	})
}

func TestService_Submit_quiz(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name      string
		na        assignment.NewAssignment
		correct   int
		wantGrade float64
	}{
		{name: "on time", na: assignment.NewAssignment{}, correct: 3, wantGrade: 75},
		{
			name:      "late",
			na:        assignment.NewAssignment{DueDate: &past, AllowLateSubmissions: true, LatePenaltyPercentage: 20},
			correct:   3,
			wantGrade: 60,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			na := tt.na
			na.Type = assignment.TypeQuiz
			for i := 0; i < 4; i++ {
				na.Questions = append(na.Questions, testutil.NewQuestion("q", true, false))
			}
			a := createAssignment(t, f, na)

			answers := make([]quiz.Answer, 0, 4)
			for i, q := range a.Questions {
				opt := q.Options[1]
				if i < tt.correct {
					opt, _ = q.CorrectOption()
				}
				answers = append(answers, quiz.Answer{QuestionID: q.ID, OptionID: opt.ID})
			}

			sv, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, assignment.Work{Answers: answers})
			if err != nil {
				t.Fatalf("Submit() unexpected error = %v", err)
			}
			if sv.Status != assignment.StatusGraded || sv.Grade == nil || *sv.Grade != tt.wantGrade {
				t.Errorf("Submit() status = %q grade = %v; want graded %v", sv.Status, sv.Grade, tt.wantGrade)
			}

			score, err := f.app.AssignmentSvc.Score(ctx, sv.Submission)
			if err != nil {
				t.Fatalf("Score() unexpected error = %v", err)
			}
			if score.Score != 75 || score.Percentage != 75 {
				t.Errorf("Score() = %+v; want 75/75", score)
			}
		})
	}

	t.Run("foreign option", func(t *testing.T) {
		f := setup(t)
		a := createAssignment(t, f, assignment.NewAssignment{
			Type:      assignment.TypeQuiz,
			Questions: []quiz.NewQuestion{testutil.NewQuestion("q", true, false)},
		})
		answers := []quiz.Answer{{QuestionID: a.Questions[0].ID, OptionID: "nope"}}
		if _, err := f.app.AssignmentSvc.Submit(ctx, a, f.student, assignment.Work{Answers: answers}); !isValidation(err) {
			t.Errorf("Submit() error = %v; want ValidationError", err)
		}
	})
}

// failingGradeRepo fails every write of a graded submission.
type failingGradeRepo struct {
	assignment.Repository
}

func (r failingGradeRepo) UpdateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	if s.Status == assignment.StatusGraded {
		return assignment.Submission{}, errors.New("write failed")
	}
	return r.Repository.UpdateSubmission(ctx, s, exec...)
}

func TestService_Submit_quizRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := createAssignment(t, f, assignment.NewAssignment{
		Type:      assignment.TypeQuiz,
		Questions: []quiz.NewQuestion{testutil.NewQuestion("q", true, false)},
	})
	app := f.app
	svc := assignment.NewService(app.Conf, app.DB, failingGradeRepo{app.AssignmentRepo}, app.UserRepo, app.AttachmentSvc, app.Mail, logsvc.NewNopLogger())

	answers := []quiz.Answer{{QuestionID: a.Questions[0].ID, OptionID: a.Questions[0].Options[0].ID}}
	if _, err := svc.Submit(ctx, a, f.student, assignment.Work{Answers: answers}); err == nil {
		t.Fatal("Submit() expected an error")
	}
	if _, err := app.AssignmentSvc.GetUserSubmission(ctx, a.ID, f.student.ID); !core.IsNotFound(err) {
		t.Errorf("GetUserSubmission() error = %v; want not found", err)
	}
	if n := len(app.Mail.SentMessages()); n != 0 {
		t.Errorf("sent %d messages; want none", n)
	}

	sv, err := app.AssignmentSvc.Submit(ctx, a, f.student, assignment.Work{Answers: answers})
	if err != nil {
		t.Fatalf("Submit() unexpected error = %v", err)
	}
	if sv.Status != assignment.StatusGraded || sv.Grade == nil || *sv.Grade != 100 {
		t.Errorf("Submit() status = %q grade = %v; want graded 100", sv.Status, sv.Grade)
	}
}

func TestService_Score_draft(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := createAssignment(t, f, assignment.NewAssignment{
		Type:      assignment.TypeQuiz,
		Questions: []quiz.NewQuestion{testutil.NewQuestion("q", true, false)},
	})
	answers := []quiz.Answer{{QuestionID: a.Questions[0].ID, OptionID: a.Questions[0].Options[0].ID}}
	sv, err := f.app.AssignmentSvc.SaveDraft(ctx, a, f.student, assignment.Work{Answers: answers})
	if err != nil {
		t.Fatalf("SaveDraft() unexpected error = %v", err)
	}
	if _, err = f.app.AssignmentSvc.Score(ctx, sv.Submission); err != assignment.ErrNotScorable {
		t.Errorf("Score() error = %v; want %v", err, assignment.ErrNotScorable)
	}
}

func TestService_Create_quizInvariant(t *testing.T) {
	f := setup(t)
	yes := true
	na := assignment.NewAssignment{
		Title:          "Quiz",
		Type:           assignment.TypeQuiz,
		PointsPossible: 10,
		Questions: []quiz.NewQuestion{{
			Question: "q",
			Options:  []quiz.NewOption{{Text: "a", IsCorrect: &yes}, {Text: "b", IsCorrect: &yes}},
		}},
	}
	if _, err := f.app.AssignmentSvc.Create(context.Background(), f.course.ID, na); !isValidation(err) {
		t.Errorf("Create() error = %v; want ValidationError", err)
	}
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	published := createAssignment(t, f, assignment.NewAssignment{Title: "A"})
	draft, err := f.app.AssignmentSvc.Create(ctx, f.course.ID, assignment.NewAssignment{Title: "B", Type: assignment.TypeFile, PointsPossible: 10})
	if err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}

	visible, _ := f.app.AssignmentSvc.List(ctx, f.course.ID, false)
	if len(visible) != 1 || visible[0].ID != published.ID {
		t.Errorf("List(published) = %v", visible)
	}
	all, _ := f.app.AssignmentSvc.List(ctx, f.course.ID, true)
	if len(all) != 2 {
		t.Errorf("List(all) = %d; want 2", len(all))
	}

	if draft, err = f.app.AssignmentSvc.Publish(ctx, draft); err != nil || !draft.Published {
		t.Errorf("Publish() = %+v, %v", draft, err)
	}
}
