package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	inmemdb "github.com/trezcool/masomo-lms/storage/database/inmem"
)

func Config() *core.Config {
	return &core.Config{
		AppName:          "Masomo",
		Env:              "test",
		TestMode:         true,
		SecretKey:        "test-secret",
		DefaultFromEmail: "Masomo <noreply@masomo.test>",
		FrontendBaseURL:  "http://masomo.test",

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Storage: core.StorageConfig{Disk: "memory", PublicBaseURL: "http://media.test", MaxRequestSize: 100 << 20},
	}
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	resource.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	return validate, translator
}

// App wires every service over in-memory storage.
type App struct {
	Conf  *core.Config
	DB    *inmemdb.DB
	Disk  *disksvc.MemoryDisk
	Cache *cachesvc.MemoryCache
	Mail  *emailsvc.ConsoleServiceMock

	UserRepo       user.Repository
	CourseRepo     course.Repository
	ResourceRepo   resource.Repository
	AttachmentRepo attachment.Repository
	AssignmentRepo assignment.Repository

	UserSvc       *user.Service
	CourseSvc     *course.Service
	AttachmentSvc *attachment.Service
	ResourceSvc   *resource.Service
	AssignmentSvc *assignment.Service
}

func NewApp() *App {
	conf := Config()
	logger := logsvc.NewNopLogger()
	db := inmemdb.Open()

	app := &App{
		Conf:           conf,
		DB:             db,
		Disk:           disksvc.NewMemoryDisk(conf.Storage.PublicBaseURL),
		Cache:          cachesvc.NewMemoryCache(),
		Mail:           emailsvc.NewConsoleServiceMock(conf, logger),
		UserRepo:       inmemdb.NewUserRepository(db),
		CourseRepo:     inmemdb.NewCourseRepository(db),
		ResourceRepo:   inmemdb.NewResourceRepository(db),
		AttachmentRepo: inmemdb.NewAttachmentRepository(db),
		AssignmentRepo: inmemdb.NewAssignmentRepository(db),
	}
	app.UserSvc = user.NewService(conf, app.UserRepo, app.Mail)
	app.CourseSvc = course.NewService(db, app.CourseRepo, app.UserRepo)
	app.AttachmentSvc = attachment.NewService(app.AttachmentRepo, app.Disk, logger)
	app.ResourceSvc = resource.NewService(db, app.ResourceRepo, app.CourseRepo, app.AttachmentSvc, app.Cache, logger)
	app.AssignmentSvc = assignment.NewService(conf, db, app.AssignmentRepo, app.UserRepo, app.AttachmentSvc, app.Mail, logger)
	return app
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateCourse creates a course taught by instructor with one chapter.
func CreateCourse(t *testing.T, app *App, instructor user.User, title string) (course.Course, course.Chapter) {
	ctx := context.Background()
	c, err := app.CourseSvc.Create(ctx, course.NewCourse{Title: title, Published: true}, instructor)
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	ch, err := app.CourseSvc.CreateChapter(ctx, c, course.NewChapter{Title: "Chapter 1"}, instructor)
	if err != nil {
		t.Fatalf("createChapter() failed: %v", err)
	}
	return c, ch
}

// NewQuestion builds a question whose options are correct as flagged.
func NewQuestion(text string, correct ...bool) quiz.NewQuestion {
	nq := quiz.NewQuestion{Question: text, Points: 1}
	for i, c := range correct {
		c := c
		nq.Options = append(nq.Options, quiz.NewOption{Text: text + " option " + string(rune('a'+i)), IsCorrect: &c})
	}
	return nq
}
