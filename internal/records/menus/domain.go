package menus

import (
	"errors"
	"sort"
	"strconv"
)

// Resource names the menu caches and audit entries.
const Resource = "menus"

const (
	apiPath        = "/menus"
	detailResource = Resource + "/detail"
)

// ErrOwnParent is returned when a menu is made its own parent.
var ErrOwnParent = errors.New("menus: a menu cannot be its own parent")

// Menu is one entry of the console navigation.
type Menu struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	ParentID  *int   `json:"parentId"`
	SortOrder int    `json:"sortOrder"`
	Visible   bool   `json:"visible"`
}

// Input carries the editable fields of a menu.
type Input struct {
	Name      string `json:"name" form:"name" validate:"required,max=100"`
	URL       string `json:"url" form:"url" validate:"required,max=255,startswith=/"`
	ParentID  *int   `json:"parentId" form:"parentId" validate:"omitempty,min=1"`
	SortOrder int    `json:"sortOrder" form:"sortOrder" validate:"min=0,max=9999"`
	Visible   bool   `json:"visible" form:"visible"`
}

func inputOf(m Menu) Input {
	return Input{Name: m.Name, URL: m.URL, ParentID: m.ParentID, SortOrder: m.SortOrder, Visible: m.Visible}
}

// Ordered returns menus sorted by sort order, ties broken by id.
func Ordered(items []Menu) []Menu {
	out := append([]Menu(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// parentName resolves the display name of m's parent within items.
func parentName(items []Menu, m Menu) string {
	if m.ParentID == nil {
		return ""
	}
	for _, p := range items {
		if p.ID == *m.ParentID {
			return p.Name
		}
	}
	return "#" + strconv.Itoa(*m.ParentID)
}
