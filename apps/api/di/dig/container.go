package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-lms/apps/api/echo"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/assignment"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/quiz"
	"github.com/trezcool/masomo-lms/core/resource"
	"github.com/trezcool/masomo-lms/core/user"
	cachesvc "github.com/trezcool/masomo-lms/services/cache"
	disksvc "github.com/trezcool/masomo-lms/services/disk"
	emailsvc "github.com/trezcool/masomo-lms/services/email"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
	"github.com/trezcool/masomo-lms/storage/database"
	sqlxrepos "github.com/trezcool/masomo-lms/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Disk is the configured attachment disk. MediaRoot is set when files are served by the API itself.
type Disk struct {
	attachment.Disk
	MediaRoot string
}

func newLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*database.DB, core.Transactor) {
	setUp := func() (*database.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newDisk(conf *core.Config) (Disk, error) {
	switch conf.Storage.Disk {
	case "gcs":
		d, err := disksvc.NewGCSDisk(context.Background(), conf.Storage.GCSBucket, conf.Storage.PublicBaseURL)
		if err != nil {
			return Disk{}, err
		}
		return Disk{Disk: d}, nil
	case "memory":
		return Disk{Disk: disksvc.NewMemoryDisk(conf.Storage.PublicBaseURL)}, nil
	default:
		d, err := disksvc.NewLocalDisk(conf.Storage.LocalRoot, conf.Storage.PublicBaseURL)
		if err != nil {
			return Disk{}, err
		}
		return Disk{Disk: d, MediaRoot: d.Root()}, nil
	}
}

// newCache returns Redis when configured, an in-process cache otherwise.
func newCache(conf *core.Config, logger core.Logger) resource.Cache {
	rc, err := cachesvc.NewRedisCache(context.Background(), conf)
	switch {
	case err != nil:
		logger.Warn(fmt.Sprintf("redis unavailable, falling back to memory cache: %v", err), err)
	case rc != nil:
		return rc
	}
	return cachesvc.NewMemoryCache()
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	resource.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	return validate
}

func newAttachmentService(repo attachment.Repository, disk Disk, logger core.Logger) *attachment.Service {
	return attachment.NewService(repo, disk.Disk, logger)
}

func newResourceService(
	db core.Transactor,
	repo resource.Repository,
	courses course.Repository,
	attachments *attachment.Service,
	cache resource.Cache,
	logger core.Logger,
) *resource.Service {
	return resource.NewService(db, repo, courses, attachments, cache, logger)
}

type serverParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	Disk          Disk
	UserSvc       *user.Service
	CourseSvc     *course.Service
	ResourceSvc   *resource.Service
	AttachmentSvc *attachment.Service
	AssignmentSvc *assignment.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		ResourceSvc:   p.ResourceSvc,
		AttachmentSvc: p.AttachmentSvc,
		AssignmentSvc: p.AssignmentSvc,
		MediaRoot:     p.Disk.MediaRoot,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newDisk))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(sqlxrepos.NewResourceRepository))
	must(c.Provide(sqlxrepos.NewAttachmentRepository))
	must(c.Provide(sqlxrepos.NewAssignmentRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newAttachmentService))
	must(c.Provide(newResourceService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
