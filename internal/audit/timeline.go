package audit

import "time"

// Entry is one successful write made through the console.
type Entry struct {
	At       time.Time
	Actor    string
	Action   string
	Resource string
	RecordID string
}

// TimelineFilters narrows the change log.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Resource string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo holds simple previous/next paging.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps one page of the change log.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// ViewModel is the template model of the change log page.
type ViewModel struct {
	Filters   TimelineFilters
	From      string
	To        string
	Rows      []Entry
	Paging    PagingInfo
	Actions   []string
	Resources []string
	PrevURL   string
	NextURL   string
	ExportURL string
	Error     string
}
