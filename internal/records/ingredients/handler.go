package ingredients

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-admin/atelier/internal/gateway"
	"github.com/atelier-admin/atelier/internal/screens"
)

// BasePath is where the ingredient screens are mounted.
const BasePath = "/ingredients"

// Handler serves the ingredient screens.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *screens.Pages
	list    *screens.ListScreen[Ingredient]
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, pages *screens.Pages, store *screens.Store, await time.Duration) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		pages:   pages,
		list: &screens.ListScreen[Ingredient]{
			Name:  Resource,
			Store: store,
			Config: screens.ListConfig[Ingredient]{
				Catalog:      Catalog,
				Defaults:     Defaults,
				Cache:        service.Lists(),
				Fetch:        service.List,
				AwaitTimeout: await,
			},
			Options: screens.ListOptions{
				Heading:  "Ingredient",
				BasePath: BasePath,
				NewPath:  BasePath + "/new",
				Columns:  []string{"ID", "English name", "Korean name", "CAS No", "Function"},
			},
			Row:    row,
			Render: pages.List,
			Logger: logger,
		},
	}
}

// MountRoutes registers ingredient routes.
func (h *Handler) MountRoutes(r chi.Router) {
	h.list.MountRoutes(r)
	r.Get("/new", h.showCreate)
	r.Post("/new", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Get("/edit", h.showEdit)
		r.Post("/edit", h.update)
		r.Post("/delete", h.delete)
	})
}

func row(in Ingredient) screens.Row {
	return screens.Row{
		Link:  itemURL(in.ID),
		Cells: []string{"#" + strconv.Itoa(in.ID), in.NameEnglish, in.NameKorean, in.CasNo, in.Func},
	}
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.pages.Form(w, r, form("Create ingredient", BasePath+"/new", Input{}))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	if _, err := h.service.Create(r.Context(), in); err != nil {
		h.rejected(w, r, form("Create ingredient", BasePath+"/new", in), err)
		return
	}
	screens.Flash(r, "success", "Ingredient created")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	page := screens.DetailPage{
		Heading:    "Ingredient",
		BackPath:   BasePath,
		EditPath:   itemURL(id) + "/edit",
		DeletePath: itemURL(id) + "/delete",
	}
	status := http.StatusOK
	res := h.service.Get(r.Context(), id)
	if res.Failed() {
		page.Error = screens.ErrorMessage(res.Err)
		if gateway.IsNotFound(res.Err) {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadGateway
		}
	} else if res.HasData {
		in := res.Data
		page.Heading = in.NameEnglish
		page.Items = []screens.DetailItem{
			{Label: "ID", Value: strconv.Itoa(in.ID)},
			{Label: "English name", Value: in.NameEnglish},
			{Label: "Korean name", Value: in.NameKorean},
			{Label: "CAS No", Value: in.CasNo},
			{Label: "Function", Value: in.Func},
		}
	}
	h.pages.Detail(w, r, status, page)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res := h.service.Get(r.Context(), id)
	if !res.HasData {
		page := form("Edit ingredient", itemURL(id)+"/edit", Input{})
		page.Error = screens.ErrorMessage(res.Err)
		h.pages.Form(w, r, page)
		return
	}
	d := res.Data
	in := Input{NameEnglish: d.NameEnglish, NameKorean: d.NameKorean, CasNo: d.CasNo, Func: d.Func}
	h.pages.Form(w, r, form("Edit ingredient", itemURL(id)+"/edit", in))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	if err := h.service.Update(r.Context(), id, in); err != nil {
		h.rejected(w, r, form("Edit ingredient", itemURL(id)+"/edit", in), err)
		return
	}
	screens.Flash(r, "success", "Ingredient updated")
	http.Redirect(w, r, itemURL(id), http.StatusSeeOther)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Warn("delete ingredient", slog.Int("id", id), slog.Any("error", err))
		screens.Flash(r, "danger", screens.ErrorMessage(err))
		http.Redirect(w, r, itemURL(id), http.StatusSeeOther)
		return
	}
	screens.Flash(r, "success", "Ingredient deleted")
	http.Redirect(w, r, BasePath, http.StatusSeeOther)
}

func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, page screens.FormPage, err error) {
	if errs := screens.FieldErrors(err); errs != nil {
		page.Fields = screens.ApplyErrors(page.Fields, errs)
	} else {
		h.logger.Warn("save ingredient", slog.Any("error", err))
		page.Error = screens.ErrorMessage(err)
	}
	h.pages.Form(w, r, page)
}

func form(heading, action string, in Input) screens.FormPage {
	return screens.FormPage{
		Heading:    heading,
		Action:     action,
		CancelPath: BasePath,
		Submit:     "Save",
		Fields: []screens.FormField{
			{Name: "nameEnglish", Label: "English name", Type: "text", Value: in.NameEnglish, Required: true},
			{Name: "nameKorean", Label: "Korean name", Type: "text", Value: in.NameKorean, Required: true},
			{Name: "casNo", Label: "CAS No", Type: "text", Value: in.CasNo},
			{Name: "func", Label: "Function", Type: "text", Value: in.Func},
		},
	}
}

func parseInput(r *http.Request) Input {
	return Input{
		NameEnglish: r.PostFormValue("nameEnglish"),
		NameKorean:  r.PostFormValue("nameKorean"),
		CasNo:       r.PostFormValue("casNo"),
		Func:        r.PostFormValue("func"),
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func itemURL(id int) string { return BasePath + "/" + strconv.Itoa(id) }
