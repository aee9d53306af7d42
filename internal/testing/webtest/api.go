package webtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Record is one backend row as decoded JSON.
type Record map[string]any

// API is an in-memory REST backend answering in the envelope format.
type API struct {
	mu          sync.Mutex
	collections map[string]*collection
	failures    map[string]int
	requests    []string
}

type collection struct {
	paginated bool
	nextID    int
	records   []Record
}

// NewAPI returns an empty backend.
func NewAPI() *API {
	return &API{
		collections: make(map[string]*collection),
		failures:    make(map[string]int),
	}
}

// Seed adds records to the collection at path. Paginated collections answer
// GET with items and pagination, others with a bare array.
func (a *API) Seed(path string, paginated bool, records ...Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.collectionLocked(path)
	c.paginated = paginated
	for _, rec := range records {
		c.insert(rec)
	}
}

// Fail makes every request to method and path answer with status.
// Status zero clears the failure.
func (a *API) Fail(method, path string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(a.failures, key)
		return
	}
	a.failures[key] = status
}

// Count returns how many requests hit method and path, ignoring the query.
func (a *API) Count(method, path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, req := range a.requests {
		if strings.SplitN(req, "?", 2)[0] == method+" "+path {
			n++
		}
	}
	return n
}

// Requests returns every request line received so far.
func (a *API) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

// Records returns a copy of the collection at path.
func (a *API) Records(path string) []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.collections[path]
	if !ok {
		return nil
	}
	return append([]Record(nil), c.records...)
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	line := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		line += "?" + r.URL.RawQuery
	}
	a.requests = append(a.requests, line)

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		reply(w, http.StatusUnauthorized, false, "missing token", nil)
		return
	}
	if status, ok := a.failures[r.Method+" "+r.URL.Path]; ok {
		reply(w, status, false, http.StatusText(status), nil)
		return
	}

	path, id := splitPath(r.URL.Path)
	c, ok := a.collections[path]
	if !ok {
		reply(w, http.StatusNotFound, false, "no such resource", nil)
		return
	}

	switch {
	case r.Method == http.MethodGet && id == "":
		a.list(w, r, c)
	case r.Method == http.MethodGet:
		if rec, ok := c.find(id); ok {
			reply(w, http.StatusOK, true, "ok", rec)
			return
		}
		reply(w, http.StatusNotFound, false, "record not found", nil)
	case r.Method == http.MethodPost && id == "":
		var body Record
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			reply(w, http.StatusBadRequest, false, "invalid body", nil)
			return
		}
		reply(w, http.StatusCreated, true, "created", c.insert(body))
	case r.Method == http.MethodPut && id != "":
		var body Record
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			reply(w, http.StatusBadRequest, false, "invalid body", nil)
			return
		}
		rec, ok := c.find(id)
		if !ok {
			reply(w, http.StatusNotFound, false, "record not found", nil)
			return
		}
		for k, v := range body {
			if k != "id" {
				rec[k] = v
			}
		}
		reply(w, http.StatusOK, true, "updated", rec)
	case r.Method == http.MethodDelete && id != "":
		if !c.remove(id) {
			reply(w, http.StatusNotFound, false, "record not found", nil)
			return
		}
		reply(w, http.StatusOK, true, "deleted", nil)
	default:
		reply(w, http.StatusMethodNotAllowed, false, "method not allowed", nil)
	}
}

func (a *API) list(w http.ResponseWriter, r *http.Request, c *collection) {
	q := r.URL.Query()
	matched := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		if matches(rec, q) {
			matched = append(matched, rec)
		}
	}
	if !c.paginated {
		reply(w, http.StatusOK, true, "ok", matched)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 10
	}
	total := (len(matched) + limit - 1) / limit
	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	reply(w, http.StatusOK, true, "ok", map[string]any{
		"items": matched[start:end],
		"pagination": map[string]any{
			"currentPage": page,
			"totalPages":  total,
			"hasNext":     page < total,
			"hasPrevious": page > 1,
		},
	})
}

var controlParams = map[string]bool{"page": true, "limit": true, "sort": true, "order": true}

// matches applies substring filters; keyword matches any string field.
func matches(rec Record, q map[string][]string) bool {
	for key, values := range q {
		if controlParams[key] || len(values) == 0 || values[0] == "" {
			continue
		}
		needle := strings.ToLower(values[0])
		if key == "keyword" {
			if !anyFieldContains(rec, needle) {
				return false
			}
			continue
		}
		v, ok := rec[key]
		if !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
			return false
		}
	}
	return true
}

func anyFieldContains(rec Record, needle string) bool {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (a *API) collectionLocked(path string) *collection {
	c, ok := a.collections[path]
	if !ok {
		c = &collection{}
		a.collections[path] = c
	}
	return c
}

func (c *collection) insert(rec Record) Record {
	copied := make(Record, len(rec)+1)
	for k, v := range rec {
		copied[k] = v
	}
	if id, ok := copied["id"]; ok {
		if n, err := strconv.Atoi(fmt.Sprint(id)); err == nil && n > c.nextID {
			c.nextID = n
		}
	} else {
		c.nextID++
		copied["id"] = c.nextID
	}
	c.records = append(c.records, copied)
	return copied
}

func (c *collection) find(id string) (Record, bool) {
	for _, rec := range c.records {
		if fmt.Sprint(rec["id"]) == id {
			return rec, true
		}
	}
	return nil, false
}

func (c *collection) remove(id string) bool {
	for i, rec := range c.records {
		if fmt.Sprint(rec["id"]) == id {
			c.records = append(c.records[:i], c.records[i+1:]...)
			return true
		}
	}
	return false
}

func splitPath(p string) (string, string) {
	p = strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return p, ""
	}
	tail := p[idx+1:]
	if _, err := strconv.Atoi(tail); err != nil {
		return p, ""
	}
	return p[:idx], tail
}

func reply(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"message": message,
		"data":    data,
	})
}
