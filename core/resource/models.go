package resource

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/attachment"
	"github.com/trezcool/masomo-lms/core/quiz"
)

type Type string

const (
	TypeAttachment Type = "attachment"
	TypeRichText   Type = "rich_text"
	TypeQuiz       Type = "quiz"
	TypeExternal   Type = "external"
)

var AllTypes = []Type{TypeAttachment, TypeRichText, TypeQuiz, TypeExternal}

func (t Type) Valid() bool {
	for _, typ := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}

const DefaultRichTextFormat = "html"

// Resource is a learning content unit of a chapter.
// Exactly one variant is populated, the one matching Type; attachment variants have their files
// stored as attachments owned by the resource.
type Resource struct {
	ID          string
	ChapterID   string
	Title       string
	Description string
	Type        Type // immutable
	Position    int
	Metadata    map[string]interface{}
	CreatedAt   time.Time // UTC
	UpdatedAt   time.Time // UTC

	RichText  *RichText
	External  *External
	Questions []quiz.Question
}

func (r Resource) AttachmentOwner() attachment.Owner {
	return attachment.Owner{Type: attachment.OwnerResource, ID: r.ID}
}

// CheckVariant reports whether exactly the variant matching r.Type is populated.
func (r Resource) CheckVariant() error {
	hasRichText, hasExternal, hasQuiz := r.RichText != nil, r.External != nil, len(r.Questions) > 0
	var ok bool
	switch r.Type {
	case TypeAttachment:
		ok = !hasRichText && !hasExternal && !hasQuiz
	case TypeRichText:
		ok = hasRichText && !hasExternal && !hasQuiz
	case TypeExternal:
		ok = hasExternal && !hasRichText && !hasQuiz
	case TypeQuiz:
		ok = hasQuiz && !hasRichText && !hasExternal
	}
	if !ok {
		return ErrVariantMismatch
	}
	return nil
}

type RichText struct {
	Content string `json:"content"`
	Format  string `json:"format"`
}

type External struct {
	ExternalURL     string `json:"external_url"`
	LinkTitle       string `json:"link_title,omitempty"`
	LinkDescription string `json:"link_description,omitempty"`
	FaviconURL      string `json:"favicon_url,omitempty"`
	OGImageURL      string `json:"og_image_url,omitempty"`
}

// NewResource contains information needed to create a new Resource.
// Only the payload keyed by ResourceType is read.
type NewResource struct {
	Title        string                 `json:"title" validate:"required,max=255"`
	Description  string                 `json:"description"`
	ResourceType Type                   `json:"resource_type" validate:"required,resourcetype"`
	Metadata     map[string]interface{} `json:"metadata"`

	Attachment *NewAttachment `json:"attachment"`
	RichText   *NewRichText   `json:"rich_text"`
	Quiz       *NewQuiz       `json:"quiz"`
	External   *NewExternal   `json:"external"`
}

type NewAttachment struct {
	Files []attachment.File `json:"-"`
}

type NewRichText struct {
	Content string `json:"content" validate:"required"`
	Format  string `json:"format" validate:"omitempty,oneof=html markdown text"`
}

type NewQuiz struct {
	Questions []quiz.NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewExternal struct {
	ExternalURL     string `json:"external_url" validate:"required,weburl"`
	LinkTitle       string `json:"link_title" validate:"max=255"`
	LinkDescription string `json:"link_description"`
	FaviconURL      string `json:"favicon_url" validate:"omitempty,weburl"`
	OGImageURL      string `json:"og_image_url" validate:"omitempty,weburl"`
}

// Validate cleans nr, then checks the common fields and the payload selected by ResourceType.
// File limits of attachment payloads are reported as a *core.ValidationError.
func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.dropOtherPayloads()
	switch nr.ResourceType {
	case TypeRichText:
		if nr.RichText != nil {
			nr.RichText.Content = core.CleanString(nr.RichText.Content)
			if nr.RichText.Format == "" {
				nr.RichText.Format = DefaultRichTextFormat
			}
		}
	case TypeQuiz:
		if nr.Quiz != nil {
			quiz.Clean(nr.Quiz.Questions)
		}
	case TypeExternal:
		if nr.External != nil {
			nr.External.ExternalURL = core.CleanString(nr.External.ExternalURL)
			nr.External.LinkTitle = core.CleanString(nr.External.LinkTitle)
			nr.External.LinkDescription = core.CleanString(nr.External.LinkDescription)
		}
	}
	if err := validate.Struct(nr); err != nil {
		return err
	}

	if nr.ResourceType == TypeAttachment {
		if flds := attachment.ValidateFiles("attachment.files", nr.Attachment.Files); len(flds) > 0 {
			return core.NewValidationError(nil, flds...)
		}
	}
	return nil
}

// dropOtherPayloads clears the payloads not keyed by ResourceType.
func (nr *NewResource) dropOtherPayloads() {
	if nr.ResourceType != TypeAttachment {
		nr.Attachment = nil
	}
	if nr.ResourceType != TypeRichText {
		nr.RichText = nil
	}
	if nr.ResourceType != TypeQuiz {
		nr.Quiz = nil
	}
	if nr.ResourceType != TypeExternal {
		nr.External = nil
	}
}

// Summary is the list representation of a Resource.
type Summary struct {
	ID           string                 `json:"id"`
	ChapterID    string                 `json:"chapter_id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	ResourceType Type                   `json:"resource_type"`
	Position     int                    `json:"position"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (r Resource) Summary() Summary {
	return Summary{
		ID:           r.ID,
		ChapterID:    r.ChapterID,
		Title:        r.Title,
		Description:  r.Description,
		ResourceType: r.Type,
		Position:     r.Position,
		Metadata:     r.Metadata,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type (
	// View is the discriminated representation of a Resource: only the key named by resource_type is set.
	View struct {
		Summary
		Attachment *AttachmentView `json:"attachment,omitempty"`
		RichText   *RichText       `json:"rich_text,omitempty"`
		Quiz       *QuizView       `json:"quiz,omitempty"`
		External   *External       `json:"external,omitempty"`
	}

	AttachmentView struct {
		Files []attachment.View `json:"files"`
	}

	QuizView struct {
		Questions []quiz.Question `json:"questions"`
	}

	// StudentView is a View whose quiz questions have their answers hidden.
	StudentView struct {
		Summary
		Attachment *AttachmentView  `json:"attachment,omitempty"`
		RichText   *RichText        `json:"rich_text,omitempty"`
		Quiz       *StudentQuizView `json:"quiz,omitempty"`
		External   *External        `json:"external,omitempty"`
	}

	StudentQuizView struct {
		Questions []quiz.Redacted `json:"questions"`
	}
)

func (v View) Redacted() StudentView {
	sv := StudentView{
		Summary:    v.Summary,
		Attachment: v.Attachment,
		RichText:   v.RichText,
		External:   v.External,
	}
	if v.Quiz != nil {
		sv.Quiz = &StudentQuizView{Questions: quiz.Redact(v.Quiz.Questions)}
	}
	return sv
}

// ReorderRequest lists every resource id of a chapter in the wanted order.
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}
