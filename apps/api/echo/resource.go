package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
)

const contextChapterKey = "chapter"

var errChapterNotFoundInCtx = errors.New("chapter object not found in echo.Context")

type resourceApi struct {
	users    *user.Service
	courses  *course.Service
	svc      *resource.Service
	validate *validator.Validate
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := resourceApi{
		users:    s.opts.UserSvc,
		courses:  s.opts.CourseSvc,
		svc:      s.opts.ResourceSvc,
		validate: s.opts.Validate,
	}

	cg := g.Group("/chapters/:id/resources", jwt, chapterMemberMiddleware(api.users, api.courses))
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.PUT("/order", api.reorder)

	rg := g.Group("/resources", jwt)
	rg.GET("/:id", api.retrieve)
	rg.DELETE("/:id", api.destroy)
}

// chapterMemberMiddleware loads the chapter named by the :id param and its course into the context.
// Only members of the course get through.
func chapterMemberMiddleware(users *user.Service, courses *course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			reqCtx := ctx.Request().Context()
			ch, c, err := courses.GetChapterWithCourse(reqCtx, ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "getting chapter")
			}
			if err = courses.AuthorizeMember(reqCtx, c, usr); err != nil {
				return err
			}
			ctx.Set(contextChapterKey, ch)
			ctx.Set(contextCourseKey, c)
			return next(ctx)
		}
	}
}

func getContextChapter(ctx echo.Context) (course.Chapter, course.Course, error) {
	ch, ok := ctx.Get(contextChapterKey).(course.Chapter)
	if !ok {
		return course.Chapter{}, course.Course{}, errors.Wrap(errChapterNotFoundInCtx, "retrieving object from context")
	}
	c, err := getContextCourse(ctx)
	if err != nil {
		return course.Chapter{}, course.Course{}, err
	}
	return ch, c, nil
}

// resourceCourse returns the course a resource belongs to.
func (api *resourceApi) resourceCourse(ctx echo.Context, v resource.View) (course.Course, error) {
	_, c, err := api.courses.GetChapterWithCourse(ctx.Request().Context(), v.ChapterID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "getting resource chapter")
	}
	return c, nil
}

// Handlers

func (api *resourceApi) create(ctx echo.Context) error {
	ch, c, err := getContextChapter(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = course.AuthorizeInstructor(c, usr); err != nil {
		return err
	}

	var data resource.NewResource
	files, err := bindWithFiles(ctx, &data)
	if err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if data.ResourceType == resource.TypeAttachment && len(files) > 0 {
		data.Attachment = &resource.NewAttachment{Files: files}
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.Create(ctx.Request().Context(), ch.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *resourceApi) query(ctx echo.Context) error {
	ch, _, err := getContextChapter(ctx)
	if err != nil {
		return err
	}
	sums, err := api.svc.List(ctx.Request().Context(), ch.ID)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	return ctx.JSON(http.StatusOK, sums)
}

func (api *resourceApi) reorder(ctx echo.Context) error {
	ch, c, err := getContextChapter(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = course.AuthorizeInstructor(c, usr); err != nil {
		return err
	}

	var data resource.ReorderRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err = api.svc.Reorder(reqCtx, ch.ID, data.IDs); err != nil {
		return errors.Wrap(err, "reordering resources")
	}
	sums, err := api.svc.List(reqCtx, ch.ID)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	return ctx.JSON(http.StatusOK, sums)
}

// retrieve returns the full resource to the course instructor and the quiz-redacted one to students.
func (api *resourceApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	v, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting resource")
	}
	c, err := api.resourceCourse(ctx, v)
	if err != nil {
		return err
	}

	if course.AuthorizeInstructor(c, usr) == nil {
		return ctx.JSON(http.StatusOK, v)
	}
	if err = api.courses.AuthorizeMember(reqCtx, c, usr); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v.Redacted())
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	v, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting resource")
	}
	c, err := api.resourceCourse(ctx, v)
	if err != nil {
		return err
	}
	if err = course.AuthorizeInstructor(c, usr); err != nil {
		return err
	}

	if err = api.svc.Delete(reqCtx, v.ID); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
