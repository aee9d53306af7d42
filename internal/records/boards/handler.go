package boards

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/screens"
)

// BasePath is where the board screens are mounted.
const BasePath = "/boards"

// Handler serves the board screens.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *screens.Pages
	list    *screens.ListScreen[Board]
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *screens.Pages, store *screens.Store, await time.Duration) *Handler {
	h := &Handler{logger: logger, service: service, pages: pages}
	h.list = &screens.ListScreen[Board]{
		Name:  Resource,
		Store: store,
		Config: screens.ListConfig[Board]{
			Catalog:      Catalog,
			Defaults:     Defaults,
			Cache:        service.Lists(),
			Fetch:        service.List,
			AwaitTimeout: await,
		},
		Options: screens.ListOptions{
			Heading:     "Board",
			BasePath:    BasePath,
			NewPath:     BasePath + "/new",
			Columns:     []string{"ID", "Title", "Created"},
			SortOptions: sortOptions,
		},
		Row:    row,
		Render: pages.List,
		Logger: logger,
	}
	return h
}

// MountRoutes registers board routes.
func (h *Handler) MountRoutes(r chi.Router) {
	h.list.MountRoutes(r)
	r.Get("/new", h.showCreate)
	r.Post("/new", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}/edit", h.update)
	r.Post("/{id}/delete", h.delete)
}

func row(b Board) screens.Row {
	return screens.Row{
		Link:  BasePath + "/" + strconv.Itoa(b.ID),
		Cells: []string{strconv.Itoa(b.ID), b.Title, b.CreateDtm},
	}
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.pages.Form(w, r, formPage("New post", BasePath+"/new", Input{}, nil))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	if _, err := h.service.Create(r.Context(), in); err != nil {
		h.formError(w, r, formPage("New post", BasePath+"/new", in, nil), err)
		return
	}
	screens.Flash(r, "success", "Post created")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	res := h.service.Get(r.Context(), id)
	page := screens.DetailPage{
		Heading:    "Post",
		BackPath:   BasePath,
		EditPath:   BasePath + "/" + strconv.Itoa(id) + "/edit",
		DeletePath: BasePath + "/" + strconv.Itoa(id) + "/delete",
	}
	status := http.StatusOK
	switch {
	case res.Failed():
		page.Error = screens.ErrorMessage(res.Err)
		status = statusOf(res.Err)
	case res.HasData:
		b := res.Data
		page.Heading = b.Title
		page.Items = []screens.DetailItem{
			{Label: "ID", Value: strconv.Itoa(b.ID)},
			{Label: "Title", Value: b.Title},
			{Label: "Content", Value: b.Content},
			{Label: "Created", Value: b.CreateDtm},
		}
	default:
		page.Error = "Still loading, refresh in a moment."
	}
	h.pages.Detail(w, r, status, page)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	action := BasePath + "/" + strconv.Itoa(id) + "/edit"
	res := h.service.Get(r.Context(), id)
	if res.Failed() || !res.HasData {
		page := formPage("Edit post", action, Input{}, nil)
		page.Error = screens.ErrorMessage(res.Err)
		if page.Error == "" {
			page.Error = "Still loading, refresh in a moment."
		}
		h.pages.Form(w, r, page)
		return
	}
	h.pages.Form(w, r, formPage("Edit post", action, Input{Title: res.Data.Title, Content: res.Data.Content}, nil))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	if err := h.service.Update(r.Context(), id, in); err != nil {
		h.formError(w, r, formPage("Edit post", BasePath+"/"+strconv.Itoa(id)+"/edit", in, nil), err)
		return
	}
	screens.Flash(r, "success", "Post updated")
	http.Redirect(w, r, BasePath+"/"+strconv.Itoa(id), http.StatusSeeOther)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Warn("delete post", slog.Int("id", id), slog.Any("error", err))
		screens.Flash(r, "danger", screens.ErrorMessage(err))
		http.Redirect(w, r, BasePath+"/"+strconv.Itoa(id), http.StatusSeeOther)
		return
	}
	screens.Flash(r, "success", "Post deleted")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, page screens.FormPage, err error) {
	if errs := screens.FieldErrors(err); errs != nil {
		page.Fields = screens.ApplyErrors(page.Fields, errs)
	} else {
		h.logger.Warn("save post", slog.Any("error", err))
		page.Error = screens.ErrorMessage(err)
	}
	h.pages.Form(w, r, page)
}

func formPage(heading, action string, in Input, errs map[string]string) screens.FormPage {
	fields := []screens.FormField{
		{Name: "title", Label: "Title", Type: "text", Value: in.Title, Required: true},
		{Name: "content", Label: "Content", Type: "textarea", Value: in.Content, Required: true},
	}
	return screens.FormPage{
		Heading:    heading,
		Action:     action,
		CancelPath: BasePath,
		Submit:     "Save",
		Fields:     screens.ApplyErrors(fields, errs),
	}
}

func parseInput(r *http.Request) Input {
	return Input{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func statusOf(err error) int {
	switch gateway.KindOf(err) {
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindAuth:
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}
