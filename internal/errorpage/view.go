package errorpage

import (
	"html/template"

	"github.com/cf-error-page/editor/internal/domain"
)

const (
	colorOK    = "#9bca3e"
	colorError = "#bd2426"
)

type pageView struct {
	Title        string
	ErrorCode    string
	Time         string
	RayID        string
	ClientIP     string
	WhatHappened template.HTML
	WhatCanIDo   template.HTML
	Columns      []columnView
	MoreInfo     *moreInfoView
	PerfSecBy    linkView
	Creator      *linkView
}

type columnView struct {
	Key        string
	Status     string
	Location   string
	Name       string
	StatusText string
	TextColor  string
	Source     bool
}

type moreInfoView struct {
	Text string
	Link string
	For  string
}

type linkView struct {
	Text string
	Link string
}

type columnDefaults struct {
	key      string
	location string
	name     string
}

var columns = []columnDefaults{
	{key: domain.ErrorSourceBrowser, location: "You", name: "Browser"},
	{key: domain.ErrorSourceCloudflare, location: "", name: "Cloudflare"},
	{key: domain.ErrorSourceHost, location: "Website", name: "Host"},
}

// newPageView maps normalised params onto the body template. The free-text sections are
// already escaped by Normalize when HTML is not allowed, so they are passed through as-is.
func newPageView(p domain.ErrorPageParams) pageView {
	view := pageView{
		Title:        orDefault(p.Title, "Internal server error"),
		ErrorCode:    orDefault(p.ErrorCode, "500"),
		Time:         domain.Value(p.Time),
		RayID:        domain.Value(p.RayID),
		ClientIP:     domain.Value(p.ClientIP),
		WhatHappened: template.HTML(domain.Value(p.WhatHappened)),
		WhatCanIDo:   template.HTML(domain.Value(p.WhatCanIDo)),
		PerfSecBy: linkView{
			Text: "Cloudflare",
			Link: "https://www.cloudflare.com/5xx-error-landing",
		},
	}

	items := map[string]*domain.StatusItem{
		domain.ErrorSourceBrowser:    p.BrowserStatus,
		domain.ErrorSourceCloudflare: p.CloudflareStatus,
		domain.ErrorSourceHost:       p.HostStatus,
	}
	source := domain.Value(p.ErrorSource)
	for _, col := range columns {
		view.Columns = append(view.Columns, newColumnView(col, items[col.key], source == col.key))
	}

	if mi := p.MoreInformation; mi == nil || !domain.IsTrue(mi.Hidden) {
		view.MoreInfo = &moreInfoView{Text: "cloudflare.com", Link: "https://www.cloudflare.com/", For: "more information"}
		if mi != nil {
			view.MoreInfo.Text = orDefault(mi.Text, view.MoreInfo.Text)
			view.MoreInfo.Link = orDefault(mi.Link, view.MoreInfo.Link)
			view.MoreInfo.For = orDefault(mi.For, view.MoreInfo.For)
		}
	}

	if ps := p.PerfSecBy; ps != nil {
		view.PerfSecBy.Text = orDefault(ps.Text, view.PerfSecBy.Text)
		view.PerfSecBy.Link = orDefault(ps.Link, view.PerfSecBy.Link)
	}

	if c := p.CreatorInfo; c != nil && !domain.IsTrue(c.Hidden) {
		view.Creator = &linkView{Text: domain.Value(c.Text), Link: domain.Value(c.Link)}
	}

	return view
}

func newColumnView(col columnDefaults, item *domain.StatusItem, source bool) columnView {
	view := columnView{
		Key:      col.key,
		Status:   domain.StatusOK,
		Location: col.location,
		Name:     col.name,
		Source:   source,
	}
	if item != nil {
		if domain.Value(item.Status) == domain.StatusError {
			view.Status = domain.StatusError
		}
		view.Location = orDefault(item.Location, view.Location)
		view.Name = orDefault(item.Name, view.Name)
		view.StatusText = domain.Value(item.StatusText)
		view.TextColor = domain.Value(item.StatusTextColor)
	}
	if view.StatusText == "" {
		view.StatusText = "Working"
		if view.Status == domain.StatusError {
			view.StatusText = "Error"
		}
	}
	if view.TextColor == "" {
		view.TextColor = colorOK
		if view.Status == domain.StatusError {
			view.TextColor = colorError
		}
	}
	return view
}

func htmlTitle(p domain.ErrorPageParams) string {
	if title := domain.Value(p.HTMLTitle); title != "" {
		return title
	}
	return orDefault(p.Title, "Internal server error")
}

func orDefault(p *string, fallback string) string {
	if v := domain.Value(p); v != "" {
		return v
	}
	return fallback
}
