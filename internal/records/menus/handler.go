package menus

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-admin/atelier/internal/filters"
	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
)

// BasePath is where the menu screens are mounted.
const BasePath = "/menus"

var columns = []string{"ID", "Name", "URL", "Parent", "Order", "Visible"}

// Handler serves the menu screens.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *screens.Pages
	store   *screens.Store
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *screens.Pages, store *screens.Store) *Handler {
	return &Handler{logger: logger, service: service, pages: pages, store: store}
}

// MountRoutes registers menu routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreate)
	r.Post("/new", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/edit", h.showEdit)
	r.Post("/{id}/edit", h.update)
	r.Post("/{id}/delete", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	// The menu list keeps no filter state; leaving a list screen for it
	// discards that screen.
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.store.Drop(sess.ID)
	}
	page := screens.ListPage{
		Heading:  "Menus",
		BasePath: BasePath,
		NewPath:  BasePath + "/new",
		Columns:  columns,
	}
	res := h.service.List(r.Context())
	switch {
	case res.Failed():
		h.logger.Warn("menu list load failed", slog.Any("error", res.Err))
		page.Error = screens.ErrorMessage(res.Err)
	case res.Loading() && !res.HasData:
		page.Loading = true
	case res.Loading():
		page.Refreshing = true
	}
	if res.HasData {
		for _, m := range Ordered(res.Data) {
			page.Rows = append(page.Rows, screens.Row{
				Link: itemURL(m.ID),
				Cells: []string{
					strconv.Itoa(m.ID),
					m.Name,
					m.URL,
					parentName(res.Data, m),
					strconv.Itoa(m.SortOrder),
					yesNo(m.Visible),
				},
			})
		}
	}
	h.pages.List(w, r, page)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := menuID(w, r)
	if !ok {
		return
	}
	page := screens.DetailPage{
		Heading:    "Menu",
		BackPath:   BasePath,
		EditPath:   itemURL(id) + "/edit",
		DeletePath: itemURL(id) + "/delete",
	}
	status := http.StatusOK
	res := h.service.Get(r.Context(), id)
	switch {
	case res.Failed():
		page.Error = screens.ErrorMessage(res.Err)
		status = http.StatusBadGateway
		if gateway.IsNotFound(res.Err) {
			status = http.StatusNotFound
		}
	case res.HasData:
		m := res.Data
		parent := "-"
		if all := h.service.List(r.Context()); all.HasData && m.ParentID != nil {
			parent = parentName(all.Data, m)
		}
		page.Heading = m.Name
		page.Items = []screens.DetailItem{
			{Label: "ID", Value: strconv.Itoa(m.ID)},
			{Label: "Name", Value: m.Name},
			{Label: "URL", Value: m.URL},
			{Label: "Parent", Value: parent},
			{Label: "Order", Value: strconv.Itoa(m.SortOrder)},
			{Label: "Visible", Value: yesNo(m.Visible)},
		}
	}
	h.pages.Detail(w, r, status, page)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.pages.Form(w, r, h.form(r, "New menu", BasePath+"/new", 0, Input{Visible: true}, nil))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, errs, ok := parseInput(w, r)
	if !ok {
		return
	}
	if len(errs) == 0 {
		_, err := h.service.Create(r.Context(), in)
		if err == nil {
			screens.Flash(r, "success", "Menu created")
			http.Redirect(w, r, BasePath, http.StatusSeeOther)
			return
		}
		h.rejected(w, r, h.form(r, "New menu", BasePath+"/new", 0, in, nil), err)
		return
	}
	h.pages.Form(w, r, h.form(r, "New menu", BasePath+"/new", 0, in, errs))
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := menuID(w, r)
	if !ok {
		return
	}
	res := h.service.Get(r.Context(), id)
	if !res.HasData {
		page := h.form(r, "Edit menu", itemURL(id)+"/edit", id, Input{}, nil)
		page.Error = screens.ErrorMessage(res.Err)
		h.pages.Form(w, r, page)
		return
	}
	h.pages.Form(w, r, h.form(r, "Edit menu", itemURL(id)+"/edit", id, inputOf(res.Data), nil))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := menuID(w, r)
	if !ok {
		return
	}
	in, errs, ok := parseInput(w, r)
	if !ok {
		return
	}
	action := itemURL(id) + "/edit"
	if len(errs) > 0 {
		h.pages.Form(w, r, h.form(r, "Edit menu", action, id, in, errs))
		return
	}
	if err := h.service.Update(r.Context(), id, in); err != nil {
		h.rejected(w, r, h.form(r, "Edit menu", action, id, in, nil), err)
		return
	}
	screens.Flash(r, "success", "Menu updated")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := menuID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Warn("delete menu", slog.Int("id", id), slog.Any("error", err))
		screens.Flash(r, "danger", screens.ErrorMessage(err))
		http.Redirect(w, r, itemURL(id), http.StatusSeeOther)
		return
	}
	screens.Flash(r, "success", "Menu deleted")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, page screens.FormPage, err error) {
	switch errs := screens.FieldErrors(err); {
	case errs != nil:
		page.Fields = screens.ApplyErrors(page.Fields, errs)
	case errors.Is(err, ErrOwnParent):
		page.Fields = screens.ApplyErrors(page.Fields, map[string]string{"parentId": "A menu cannot be its own parent."})
	default:
		h.logger.Warn("save menu", slog.Any("error", err))
		page.Error = screens.ErrorMessage(err)
	}
	h.pages.Form(w, r, page)
}

// form builds the menu form; self is excluded from the parent choices.
func (h *Handler) form(r *http.Request, heading, action string, self int, in Input, errs map[string]string) screens.FormPage {
	var parents []filters.Option
	if all := h.service.List(r.Context()); all.HasData {
		for _, m := range Ordered(all.Data) {
			if m.ID == self {
				continue
			}
			parents = append(parents, filters.Option{Value: strconv.Itoa(m.ID), Label: m.Name})
		}
	}
	parent := ""
	if in.ParentID != nil {
		parent = strconv.Itoa(*in.ParentID)
	}
	fields := []screens.FormField{
		{Name: "name", Label: "Name", Type: "text", Value: in.Name, Required: true},
		{Name: "url", Label: "URL", Type: "text", Value: in.URL, Required: true},
		{Name: "parentId", Label: "Parent", Type: "select", Value: parent, Options: parents},
		{Name: "sortOrder", Label: "Order", Type: "number", Value: strconv.Itoa(in.SortOrder)},
		{Name: "visible", Label: "Visible", Type: "checkbox", Value: strconv.FormatBool(in.Visible)},
	}
	return screens.FormPage{
		Heading:    heading,
		Action:     action,
		CancelPath: BasePath,
		Submit:     "Save",
		Fields:     screens.ApplyErrors(fields, errs),
	}
}

// parseInput reads the form; errs holds values that are not numbers.
func parseInput(w http.ResponseWriter, r *http.Request) (Input, map[string]string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return Input{}, nil, false
	}
	errs := make(map[string]string)
	in := Input{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		URL:     strings.TrimSpace(r.PostFormValue("url")),
		Visible: r.PostFormValue("visible") == "true",
	}
	if raw := strings.TrimSpace(r.PostFormValue("parentId")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs["parentId"] = "Choose a parent from the list."
		} else {
			in.ParentID = &n
		}
	}
	if raw := strings.TrimSpace(r.PostFormValue("sortOrder")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs["sortOrder"] = "Enter a whole number."
		}
		in.SortOrder = n
	}
	return in, errs, true
}

func menuID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func itemURL(id int) string { return BasePath + "/" + strconv.Itoa(id) }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
