package dashboard

import (
	"fmt"
	"html/template"
	"sort"
)

// Element ids of the regions the dashboard renders into.
const (
	IDTotalIncome         = "total-income"
	IDTotalExpense        = "total-expense"
	IDNetBalance          = "net-balance"
	IDFilterMonth         = "filter-month"
	IDFilterYear          = "filter-year"
	IDTransactionCategory = "transaction-category"
	IDBudgetCategory      = "budget-category"
	IDTransactionsBody    = "transactions-body"
	IDBudgetsBody         = "budgets-body"
	IDCategoryChart       = "category-chart"
	IDProfileName         = "profile-name"
	IDProfileEmail        = "profile-email"
	IDProfilePhoto        = "profile-photo"
	IDTransactionForm     = "transaction-form"
	IDBudgetForm          = "budget-form"
	IDAlert               = "dashboard-alert"
)

// region describes the container element a region is rendered into.
type region struct {
	tag   string
	attrs string
}

var regions = map[string]region{
	IDTotalIncome:         {tag: "span", attrs: `class="amount"`},
	IDTotalExpense:        {tag: "span", attrs: `class="amount"`},
	IDNetBalance:          {tag: "span", attrs: `class="amount"`},
	IDFilterMonth:         {tag: "span"},
	IDFilterYear:          {tag: "span"},
	IDTransactionCategory: {tag: "select", attrs: `name="category_id"`},
	IDBudgetCategory:      {tag: "select", attrs: `name="category_id"`},
	IDTransactionsBody:    {tag: "tbody"},
	IDBudgetsBody:         {tag: "tbody"},
	IDCategoryChart:       {tag: "div", attrs: `class="chart-canvas"`},
	IDProfileName:         {tag: "span"},
	IDProfileEmail:        {tag: "span"},
	IDProfilePhoto:        {tag: "span"},
	IDTransactionForm:     {tag: "div", attrs: `class="fields"`},
	IDBudgetForm:          {tag: "div", attrs: `class="fields"`},
	IDAlert:               {tag: "div", attrs: `role="alert"`},
}

// Fragment is one changed region, ready to be swapped into the page.
type Fragment struct {
	ID   string
	HTML template.HTML
}

// Document is the rendered state of a dashboard page: one HTML fragment per
// region. Every write replaces the region's previous content whole.
type Document struct {
	content map[string]template.HTML
	dirty   map[string]struct{}
}

func NewDocument() *Document {
	return &Document{
		content: make(map[string]template.HTML, len(regions)),
		dirty:   make(map[string]struct{}),
	}
}

// Replace sets the content of region id and marks it changed.
func (d *Document) Replace(id string, html template.HTML) {
	d.content[id] = html
	d.dirty[id] = struct{}{}
}

// Content returns the inner HTML of region id.
func (d *Document) Content(id string) template.HTML {
	return d.content[id]
}

// Element returns region id wrapped in its container element.
func (d *Document) Element(id string) template.HTML {
	return d.wrap(id, "")
}

// Changed lists the regions written since the last Flush, sorted by id.
func (d *Document) Changed() []string {
	ids := make([]string, 0, len(d.dirty))
	for id := range d.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush returns the changed regions as out-of-band swap fragments and
// clears the change set. Table bodies come first: htmx parses the response
// inside a template, and a <tbody> that follows any other element there is
// dropped together with its rows.
func (d *Document) Flush() []Fragment {
	ids := d.Changed()
	sort.SliceStable(ids, func(i, j int) bool {
		return regions[ids[i]].tag == "tbody" && regions[ids[j]].tag != "tbody"
	})
	out := make([]Fragment, 0, len(ids))
	for _, id := range ids {
		out = append(out, Fragment{ID: id, HTML: d.wrap(id, ` hx-swap-oob="innerHTML"`)})
	}
	d.dirty = make(map[string]struct{})
	return out
}

func (d *Document) wrap(id, extra string) template.HTML {
	r, ok := regions[id]
	if !ok {
		r = region{tag: "div"}
	}
	attrs := ""
	if r.attrs != "" {
		attrs = " " + r.attrs
	}
	return template.HTML(fmt.Sprintf(`<%s id="%s"%s%s>%s</%s>`,
		r.tag, template.HTMLEscapeString(id), attrs, extra, d.content[id], r.tag))
}
