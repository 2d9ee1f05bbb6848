package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
)

type attachmentApi struct {
	users       *user.Service
	courses     *course.Service
	resources   *resource.Service
	assignments *assignment.Service
	svc         *attachment.Service
}

func registerAttachmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := attachmentApi{
		users:       s.opts.UserSvc,
		courses:     s.opts.CourseSvc,
		resources:   s.opts.ResourceSvc,
		assignments: s.opts.AssignmentSvc,
		svc:         s.opts.AttachmentSvc,
	}

	ag := g.Group("/attachments", jwt)
	ag.DELETE("/:id", api.destroy)
}

// ownerCourseID returns the id of the course holding the attachment's owner.
func (api *attachmentApi) ownerCourseID(ctx echo.Context, at attachment.Attachment) (string, error) {
	reqCtx := ctx.Request().Context()
	switch at.OwnerType {
	case attachment.OwnerResource:
		v, err := api.resources.Get(reqCtx, at.OwnerID)
		if err != nil {
			return "", errors.Wrap(err, "getting owner resource")
		}
		ch, err := api.courses.GetChapter(reqCtx, v.ChapterID)
		if err != nil {
			return "", errors.Wrap(err, "getting resource chapter")
		}
		return ch.CourseID, nil
	case attachment.OwnerSubmission:
		s, err := api.assignments.GetSubmission(reqCtx, at.OwnerID)
		if err != nil {
			return "", errors.Wrap(err, "getting owner submission")
		}
		a, err := api.assignments.Get(reqCtx, s.AssignmentID)
		if err != nil {
			return "", errors.Wrap(err, "getting submission assignment")
		}
		return a.CourseID, nil
	}
	return "", errHttpNotFound
}

// Handlers

// destroy detaches an attachment. Only the instructor of the course owning it may do so.
func (api *attachmentApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	at, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attachment")
	}
	courseID, err := api.ownerCourseID(ctx, at)
	if err != nil {
		return err
	}
	c, err := api.courses.Get(reqCtx, courseID)
	if err != nil {
		return errors.Wrap(err, "getting owner course")
	}
	if err = course.AuthorizeInstructor(c, usr); err != nil {
		return err
	}

	if err = api.svc.Detach(reqCtx, at.ID); err != nil {
		return errors.Wrap(err, "detaching attachment")
	}
	if at.OwnerType == attachment.OwnerResource {
		api.resources.Invalidate(reqCtx, at.OwnerID)
	}
	return ctx.NoContent(http.StatusNoContent)
}
