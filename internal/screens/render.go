package screens

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/shared"
	"github.com/atelier-admin/atelier/internal/view"
)

// FormField is one input of a record form.
type FormField struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Error    string
	Required bool
	Options  []filters.Option
}

// FormPage is the template model of create and edit screens.
type FormPage struct {
	Heading    string
	Action     string
	CancelPath string
	Submit     string
	Fields     []FormField
	Error      string
}

// DetailItem is one labelled value of a record.
type DetailItem struct {
	Label string
	Value string
}

// DetailPage is the template model of a record detail screen.
type DetailPage struct {
	Heading    string
	BackPath   string
	EditPath   string
	DeletePath string
	Items      []DetailItem
	Error      string
}

// Pages renders screen models through the shared layout.
type Pages struct {
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Logger    *slog.Logger
}

// List renders a list page.
func (p *Pages) List(w http.ResponseWriter, r *http.Request, page ListPage) {
	p.Render(w, r, http.StatusOK, "pages/list.html", page.Heading, page)
}

// Form renders a form page; status is 400 when it carries errors.
func (p *Pages) Form(w http.ResponseWriter, r *http.Request, page FormPage) {
	status := http.StatusOK
	if page.Error != "" || hasFieldErrors(page.Fields) {
		status = http.StatusBadRequest
	}
	p.Render(w, r, status, "pages/form.html", page.Heading, page)
}

// Detail renders a detail page.
func (p *Pages) Detail(w http.ResponseWriter, r *http.Request, status int, page DetailPage) {
	p.Render(w, r, status, "pages/detail.html", page.Heading, page)
}

// Render executes name inside the layout with the session's CSRF token and flash.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.CSRF.EnsureToken(r.Context(), sess)
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if sess != nil {
		td.Flash = sess.PopFlash()
		td.User = sess.User()
	}
	if err := p.Templates.RenderStatus(w, status, name, td); err != nil {
		p.logger().Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

// Flash queues a message for the next page of the session.
func Flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func (p *Pages) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// NewValidator returns a validator reporting fields by their form tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// FieldErrors maps validation failures to form field names.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

// ApplyErrors copies field errors into fields.
func ApplyErrors(fields []FormField, errs map[string]string) []FormField {
	for i := range fields {
		fields[i].Error = errs[fields[i].Name]
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "At most " + fe.Param() + " characters."
	case "min":
		return "At least " + fe.Param() + "."
	case "url", "uri":
		return "Enter a valid address."
	case "startswith":
		return "Must start with " + fe.Param() + "."
	}
	return "Invalid value."
}

func hasFieldErrors(fields []FormField) bool {
	for _, f := range fields {
		if f.Error != "" {
			return true
		}
	}
	return false
}
