package audit

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/atelier-admin/atelier/internal/screens"
	"github.com/atelier-admin/atelier/internal/shared"
)

// BasePath is where the change log is mounted.
const BasePath = "/audit"

const (
	defaultPageSize  = 20
	maxPageSize      = 50
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	exportLimit      = 10
	exportWindow     = time.Minute
	dateLayout       = "2006-01-02"
)

var actions = []string{"create", "update", "delete"}

// TimelineService is what the handler reads from.
type TimelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]Entry, error)
}

// Handler serves the change log page and its CSV export.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	pages     *screens.Pages
	resources []string
	now       func() time.Time
}

// NewHandler constructs a Handler; resources fill the resource filter. A nil
// service serves a page saying the change log is off.
func NewHandler(logger *slog.Logger, service TimelineService, pages *screens.Pages, resources []string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		pages:     pages,
		resources: resources,
		now:       time.Now,
	}
}

// MountRoutes registers the change log routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Get("/", h.handleTimeline)
	r.With(limiter).Get("/export.csv", h.handleExport)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := h.parseFilters(q)
	vm := ViewModel{Filters: filters, Actions: actions, Resources: h.resources, From: q.Get("from"), To: q.Get("to")}
	if h.service == nil {
		vm.Error = "The change log is not enabled on this console."
		h.pages.Render(w, r, http.StatusNotFound, "pages/audit.html", "Change log", vm)
		return
	}
	if err != nil {
		vm.Error = err.Error()
		h.pages.Render(w, r, http.StatusBadRequest, "pages/audit.html", "Change log", vm)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		vm.Error = "Could not load the change log. Try again."
		h.pages.Render(w, r, http.StatusInternalServerError, "pages/audit.html", "Change log", vm)
		return
	}
	vm.From = filters.From.Format(dateLayout)
	vm.To = filters.To.Add(-24 * time.Hour).Format(dateLayout)
	vm.Rows = result.Rows
	vm.Paging = result.Paging
	if result.Paging.PrevPage > 0 {
		vm.PrevURL = BasePath + "?" + filterQuery(filters, result.Paging.PrevPage).Encode()
	}
	if result.Paging.NextPage > 0 {
		vm.NextURL = BasePath + "?" + filterQuery(filters, result.Paging.NextPage).Encode()
	}
	vm.ExportURL = BasePath + "/export.csv?" + filterQuery(filters, 0).Encode()
	h.pages.Render(w, r, http.StatusOK, "pages/audit.html", "Change log", vm)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.NotFound(w, r)
		return
	}
	filters, err := h.parseFilters(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="change-log.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"occurred_at", "actor", "action", "resource", "record_id"})
	for _, e := range rows {
		_ = cw.Write([]string{e.At.UTC().Format(time.RFC3339), e.Actor, e.Action, e.Resource, e.RecordID})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// filterError is shown to the user as is.
type filterError string

func (e filterError) Error() string { return string(e) }

const (
	errBadDate  filterError = "Dates must look like 2006-01-31."
	errBadRange filterError = "The start date must be before the end date and at most 90 days earlier."
	errBadPage  filterError = "The page must be a positive number."
)

// parseFilters reads the query string. To is inclusive on the page and
// exclusive in the returned filters.
func (h *Handler) parseFilters(q url.Values) (TimelineFilters, error) {
	filters := TimelineFilters{
		Actor:    strings.TrimSpace(q.Get("actor")),
		Resource: strings.TrimSpace(q.Get("resource")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     1,
		PageSize: defaultPageSize,
	}
	today := h.now().UTC().Truncate(24 * time.Hour)
	to := today
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, errBadDate
		}
		to = parsed
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, errBadDate
		}
		from = parsed
	}
	filters.From = from
	filters.To = to.Add(24 * time.Hour)
	if from.After(to) || to.Sub(from) > maxDateRange {
		return filters, errBadRange
	}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filters, errBadPage
		}
		filters.Page = n
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filters, errBadPage
		}
		filters.PageSize = min(n, maxPageSize)
	}
	return filters, nil
}

func filterQuery(f TimelineFilters, page int) url.Values {
	q := url.Values{}
	q.Set("from", f.From.Format(dateLayout))
	q.Set("to", f.To.Add(-24*time.Hour).Format(dateLayout))
	for key, value := range map[string]string{"actor": f.Actor, "resource": f.Resource, "action": f.Action} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if f.PageSize != defaultPageSize {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if user := strings.TrimSpace(sess.User()); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
