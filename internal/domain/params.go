package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status values accepted by StatusItem.Status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error sources accepted by ErrorPageParams.ErrorSource.
const (
	ErrorSourceBrowser    = "browser"
	ErrorSourceCloudflare = "cloudflare"
	ErrorSourceHost       = "host"
)

// ErrInvalidParams marks parameter payloads rejected at the decoding boundary.
var ErrInvalidParams = errors.New("domain: invalid error page parameters")

// ErrorPageParams is everything needed to render one error page. Every field is optional;
// nil means absent, which is distinct from an empty string.
type ErrorPageParams struct {
	HTMLTitle    *string `json:"html_title,omitempty"`
	Title        *string `json:"title,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`
	Time         *string `json:"time,omitempty"`
	RayID        *string `json:"ray_id,omitempty"`
	ClientIP     *string `json:"client_ip,omitempty"`
	WhatHappened *string `json:"what_happened,omitempty"`
	WhatCanIDo   *string `json:"what_can_i_do,omitempty"`

	MoreInformation *MoreInformation `json:"more_information,omitempty"`

	BrowserStatus    *StatusItem `json:"browser_status,omitempty"`
	CloudflareStatus *StatusItem `json:"cloudflare_status,omitempty"`
	HostStatus       *StatusItem `json:"host_status,omitempty"`

	ErrorSource *string `json:"error_source,omitempty"`

	PerfSecBy   *PerfSecBy   `json:"perf_sec_by,omitempty"`
	CreatorInfo *CreatorInfo `json:"creator_info,omitempty"`
}

// MoreInformation is the "Visit <link> for <for>" line. For is the rendered label and is
// derived from ForText during normalisation.
type MoreInformation struct {
	Hidden  *bool   `json:"hidden,omitempty"`
	Text    *string `json:"text,omitempty"`
	Link    *string `json:"link,omitempty"`
	ForText *string `json:"for_text,omitempty"`
	For     *string `json:"for,omitempty"`
}

// StatusItem describes one column of the browser / edge / host status row.
type StatusItem struct {
	Status          *string `json:"status,omitempty"`
	Location        *string `json:"location,omitempty"`
	Name            *string `json:"name,omitempty"`
	StatusText      *string `json:"status_text,omitempty"`
	StatusTextColor *string `json:"status_text_color,omitempty"`
}

// PerfSecBy is the "Performance & security by" footer entry.
type PerfSecBy struct {
	Text *string `json:"text,omitempty"`
	Link *string `json:"link,omitempty"`
}

// CreatorInfo credits the tool that produced a shared page.
type CreatorInfo struct {
	Hidden *bool   `json:"hidden,omitempty"`
	Link   *string `json:"link,omitempty"`
	Text   *string `json:"text,omitempty"`
}

// Item is a persisted share record. Items are immutable once created.
type Item struct {
	Name      string
	Params    ErrorPageParams
	CreatedAt time.Time
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Value dereferences p, yielding "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// IsTrue reports whether p is set and true.
func IsTrue(p *bool) bool {
	return p != nil && *p
}

// DecodeParams parses a JSON object into ErrorPageParams. Unknown keys are dropped; values of
// the wrong type or outside the allowed enumerations are rejected with ErrInvalidParams.
func DecodeParams(raw []byte) (ErrorPageParams, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ErrorPageParams{}, fmt.Errorf("%w: expected JSON object", ErrInvalidParams)
	}
	var params ErrorPageParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return ErrorPageParams{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := params.Validate(); err != nil {
		return ErrorPageParams{}, err
	}
	return params, nil
}

// Validate checks the enumerated fields.
func (p ErrorPageParams) Validate() error {
	if p.ErrorSource != nil {
		switch *p.ErrorSource {
		case ErrorSourceBrowser, ErrorSourceCloudflare, ErrorSourceHost:
		default:
			return fmt.Errorf("%w: error_source %q", ErrInvalidParams, *p.ErrorSource)
		}
	}
	for name, item := range map[string]*StatusItem{
		"browser_status":    p.BrowserStatus,
		"cloudflare_status": p.CloudflareStatus,
		"host_status":       p.HostStatus,
	} {
		if item == nil || item.Status == nil {
			continue
		}
		switch *item.Status {
		case StatusOK, StatusError:
		default:
			return fmt.Errorf("%w: %s.status %q", ErrInvalidParams, name, *item.Status)
		}
	}
	return nil
}

// Clone returns a deep copy sharing no pointers with p.
func (p ErrorPageParams) Clone() ErrorPageParams {
	out := ErrorPageParams{
		HTMLTitle:        cloneString(p.HTMLTitle),
		Title:            cloneString(p.Title),
		ErrorCode:        cloneString(p.ErrorCode),
		Time:             cloneString(p.Time),
		RayID:            cloneString(p.RayID),
		ClientIP:         cloneString(p.ClientIP),
		WhatHappened:     cloneString(p.WhatHappened),
		WhatCanIDo:       cloneString(p.WhatCanIDo),
		BrowserStatus:    p.BrowserStatus.clone(),
		CloudflareStatus: p.CloudflareStatus.clone(),
		HostStatus:       p.HostStatus.clone(),
		ErrorSource:      cloneString(p.ErrorSource),
	}
	if m := p.MoreInformation; m != nil {
		out.MoreInformation = &MoreInformation{
			Hidden:  cloneBool(m.Hidden),
			Text:    cloneString(m.Text),
			Link:    cloneString(m.Link),
			ForText: cloneString(m.ForText),
			For:     cloneString(m.For),
		}
	}
	if ps := p.PerfSecBy; ps != nil {
		out.PerfSecBy = &PerfSecBy{Text: cloneString(ps.Text), Link: cloneString(ps.Link)}
	}
	if c := p.CreatorInfo; c != nil {
		out.CreatorInfo = &CreatorInfo{
			Hidden: cloneBool(c.Hidden),
			Link:   cloneString(c.Link),
			Text:   cloneString(c.Text),
		}
	}
	return out
}

// WithoutTransient returns a copy with the render-time fields (time, ray id, client ip)
// removed.
func (p ErrorPageParams) WithoutTransient() ErrorPageParams {
	out := p.Clone()
	out.Time = nil
	out.RayID = nil
	out.ClientIP = nil
	return out
}

func (s *StatusItem) clone() *StatusItem {
	if s == nil {
		return nil
	}
	return &StatusItem{
		Status:          cloneString(s.Status),
		Location:        cloneString(s.Location),
		Name:            cloneString(s.Name),
		StatusText:      cloneString(s.StatusText),
		StatusTextColor: cloneString(s.StatusTextColor),
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
