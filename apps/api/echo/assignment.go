package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

const (
	contextAssignmentKey = "assignment"
	contextSubmissionKey = "submission"
)

var (
	errAssignmentNotFoundInCtx = errors.New("assignment object not found in echo.Context")
	errSubmissionNotFoundInCtx = errors.New("submission object not found in echo.Context")
	errStudentsOnly            = core.NewAuthorizationError("only students can submit work")
)

type assignmentApi struct {
	users    *user.Service
	courses  *course.Service
	svc      *assignment.Service
	validate *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := assignmentApi{
		users:    s.opts.UserSvc,
		courses:  s.opts.CourseSvc,
		svc:      s.opts.AssignmentSvc,
		validate: s.opts.Validate,
	}

	cg := g.Group("/courses/:id/assignments", jwt, courseMemberMiddleware(api.users, api.courses))
	cg.POST("", api.create)
	cg.GET("", api.query)

	ag := g.Group("/assignments/:id", jwt, api.assignmentMiddleware)
	ag.GET("", api.retrieve)
	ag.PUT("/publish", api.publish)
	ag.PUT("/draft", api.saveDraft)
	ag.POST("/submit", api.submit)
	ag.GET("/submission", api.retrieveOwnSubmission)
	ag.GET("/submissions", api.querySubmissions)

	sg := g.Group("/submissions/:id", jwt, api.submissionMiddleware)
	sg.GET("", api.retrieveSubmission)
	sg.POST("/grade", api.grade)
	sg.GET("/score", api.score)
}

// assignmentMiddleware loads the assignment named by the :id param and its course into the context.
// Only members of the course get through; students only see published assignments.
func (api *assignmentApi) assignmentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, api.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		reqCtx := ctx.Request().Context()
		a, err := api.svc.Get(reqCtx, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting assignment")
		}
		c, err := api.courses.Get(reqCtx, a.CourseID)
		if err != nil {
			return errors.Wrap(err, "getting assignment course")
		}
		if err = api.courses.AuthorizeMember(reqCtx, c, usr); err != nil {
			return err
		}
		if !a.Published && course.AuthorizeInstructor(c, usr) != nil {
			return assignment.ErrNotFound
		}
		ctx.Set(contextAssignmentKey, a)
		ctx.Set(contextCourseKey, c)
		return next(ctx)
	}
}

// submissionMiddleware loads the submission named by the :id param into the context.
// Only its author and the course instructor get through.
func (api *assignmentApi) submissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, api.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		reqCtx := ctx.Request().Context()
		s, err := api.svc.GetSubmission(reqCtx, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting submission")
		}
		a, err := api.svc.Get(reqCtx, s.AssignmentID)
		if err != nil {
			return errors.Wrap(err, "getting submission assignment")
		}
		c, err := api.courses.Get(reqCtx, a.CourseID)
		if err != nil {
			return errors.Wrap(err, "getting assignment course")
		}
		if s.UserID != usr.ID && course.AuthorizeInstructor(c, usr) != nil {
			return assignment.ErrSubmissionNotFound
		}
		ctx.Set(contextSubmissionKey, s)
		ctx.Set(contextAssignmentKey, a)
		ctx.Set(contextCourseKey, c)
		return next(ctx)
	}
}

func getContextAssignment(ctx echo.Context) (assignment.Assignment, course.Course, error) {
	a, ok := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	if !ok {
		return assignment.Assignment{}, course.Course{}, errors.Wrap(errAssignmentNotFoundInCtx, "retrieving object from context")
	}
	c, err := getContextCourse(ctx)
	if err != nil {
		return assignment.Assignment{}, course.Course{}, err
	}
	return a, c, nil
}

func getContextSubmission(ctx echo.Context) (assignment.Submission, error) {
	s, ok := ctx.Get(contextSubmissionKey).(assignment.Submission)
	if !ok {
		return assignment.Submission{}, errors.Wrap(errSubmissionNotFoundInCtx, "retrieving object from context")
	}
	return s, nil
}

// authorizeInstructor fails unless the context user teaches the context course.
func (api *assignmentApi) authorizeInstructor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	return course.AuthorizeInstructor(c, usr)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	if err := api.authorizeInstructor(ctx); err != nil {
		return err
	}
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	isInstructor := api.authorizeInstructor(ctx) == nil

	as, err := api.svc.List(ctx.Request().Context(), c.ID, isInstructor)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if isInstructor {
		if as == nil {
			as = []assignment.Assignment{}
		}
		return ctx.JSON(http.StatusOK, as)
	}
	views := make([]assignment.StudentView, 0, len(as))
	for _, a := range as {
		views = append(views, a.Redacted())
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, _, err := getContextAssignment(ctx)
	if err != nil {
		return err
	}
	if api.authorizeInstructor(ctx) == nil {
		return ctx.JSON(http.StatusOK, a)
	}
	return ctx.JSON(http.StatusOK, a.Redacted())
}

func (api *assignmentApi) publish(ctx echo.Context) error {
	if err := api.authorizeInstructor(ctx); err != nil {
		return err
	}
	a, _, err := getContextAssignment(ctx)
	if err != nil {
		return err
	}
	if a, err = api.svc.Publish(ctx.Request().Context(), a); err != nil {
		return errors.Wrap(err, "publishing assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

// bindWork binds the student's work and returns the context assignment and user with it.
func (api *assignmentApi) bindWork(ctx echo.Context) (assignment.Assignment, user.User, assignment.Work, error) {
	var w assignment.Work
	a, _, err := getContextAssignment(ctx)
	if err != nil {
		return assignment.Assignment{}, user.User{}, w, err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return assignment.Assignment{}, user.User{}, w, errors.Wrap(err, "getting context user")
	}
	if !usr.IsStudent() {
		return assignment.Assignment{}, user.User{}, w, errStudentsOnly
	}

	files, err := bindWithFiles(ctx, &w)
	if err != nil {
		return assignment.Assignment{}, user.User{}, w, errors.Wrap(err, "binding to Work")
	}
	w.Files = files
	if err = w.Validate(api.validate); err != nil {
		return assignment.Assignment{}, user.User{}, w, err
	}
	return a, usr, w, nil
}

func (api *assignmentApi) saveDraft(ctx echo.Context) error {
	a, usr, w, err := api.bindWork(ctx)
	if err != nil {
		return err
	}
	sv, err := api.svc.SaveDraft(ctx.Request().Context(), a, usr, w)
	if err != nil {
		return errors.Wrap(err, "saving draft")
	}
	return ctx.JSON(http.StatusOK, sv)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	a, usr, w, err := api.bindWork(ctx)
	if err != nil {
		return err
	}
	sv, err := api.svc.Submit(ctx.Request().Context(), a, usr, w)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusOK, sv)
}

func (api *assignmentApi) retrieveOwnSubmission(ctx echo.Context) error {
	a, _, err := getContextAssignment(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	s, err := api.svc.GetUserSubmission(reqCtx, a.ID, usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting user submission")
	}
	sv, err := api.svc.Present(reqCtx, s)
	if err != nil {
		return errors.Wrap(err, "presenting submission")
	}
	return ctx.JSON(http.StatusOK, sv)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	if err := api.authorizeInstructor(ctx); err != nil {
		return err
	}
	a, _, err := getContextAssignment(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	s, err := getContextSubmission(ctx)
	if err != nil {
		return err
	}
	sv, err := api.svc.Present(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "presenting submission")
	}
	return ctx.JSON(http.StatusOK, sv)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	if err := api.authorizeInstructor(ctx); err != nil {
		return err
	}
	s, err := getContextSubmission(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if s, err = api.svc.RecordGrade(ctx.Request().Context(), s.ID, *data.Grade, data.Feedback); err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *assignmentApi) score(ctx echo.Context) error {
	s, err := getContextSubmission(ctx)
	if err != nil {
		return err
	}
	score, err := api.svc.Score(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "scoring submission")
	}
	return ctx.JSON(http.StatusOK, score)
}
