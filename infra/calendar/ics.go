package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	corecal "github.com/kilianp07/errandplan/core/calendar"
	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
	infralog "github.com/kilianp07/errandplan/infra/logger"
)

// ICSProvider reads busy events from iCalendar sources, either local files
// or plain HTTP(S) feeds. Calendar sync and OAuth stay out of scope; a feed
// URL or an exported .ics file is the whole contract.
type ICSProvider struct {
	sources []string
	places  map[string]model.Coordinate
	ignore  map[string]struct{}
	client  *http.Client
	log     logger.Logger
}

// NewICSProvider builds a provider over the given sources. places maps
// calendar location text (case-insensitive) to coordinates; events whose
// location resolves nowhere stay opaque. ignoreTitles marks entries the
// user flagged as non-blocking.
func NewICSProvider(sources []string, places map[string]model.Coordinate, ignoreTitles []string, timeout time.Duration) *ICSProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	norm := make(map[string]model.Coordinate, len(places))
	for k, v := range places {
		norm[strings.ToLower(strings.TrimSpace(k))] = v
	}
	ign := make(map[string]struct{}, len(ignoreTitles))
	for _, t := range ignoreTitles {
		ign[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &ICSProvider{
		sources: sources,
		places:  norm,
		ignore:  ign,
		client:  &http.Client{Timeout: timeout},
		log:     infralog.New("ics-calendar"),
	}
}

var _ corecal.Provider = (*ICSProvider)(nil)

// BusyEvents fetches every source and returns the events overlapping the
// horizon, sorted by start. A failing source fails the call: planning on an
// incomplete busy set would silently double-book the user.
func (p *ICSProvider) BusyEvents(ctx context.Context, h model.Horizon) ([]model.BusyEvent, error) {
	var out []model.BusyEvent
	for _, src := range p.sources {
		body, err := p.fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("calendar source %s: %w", src, err)
		}
		cal, err := ical.ParseCalendar(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("calendar source %s: parse: %w", src, err)
		}
		for _, ve := range cal.Events() {
			ev, ok := p.parseEvent(ve)
			if !ok {
				continue
			}
			if ev.End.After(h.Start) && ev.Start.Before(h.End()) {
				out = append(out, ev)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (p *ICSProvider) parseEvent(ve *ical.VEvent) (model.BusyEvent, bool) {
	var ev model.BusyEvent
	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		ev.Title = prop.Value
	}

	allDay := false
	if prop := ve.GetProperty(ical.ComponentPropertyDtStart); prop != nil {
		if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
		if !strings.Contains(prop.Value, "T") {
			allDay = true
		}
	}

	if allDay {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			p.log.Warnf("skipping all-day event %q: %v", ev.Title, err)
			return ev, false
		}
		ev.Start = start
		if end, err := ve.GetAllDayEndAt(); err == nil {
			ev.End = end
		} else {
			ev.End = start.AddDate(0, 0, 1)
		}
		// All-day banners block no specific hours.
		ev.Ignorable = true
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			p.log.Warnf("skipping event %q: no usable start: %v", ev.Title, err)
			return ev, false
		}
		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			p.log.Debugf("skipping zero-length event %q at %s", ev.Title, start)
			return ev, false
		}
		ev.Start = start
		ev.End = end
	}

	if _, drop := p.ignore[strings.ToLower(strings.TrimSpace(ev.Title))]; drop {
		ev.Ignorable = true
	}

	if prop := ve.GetProperty(ical.ComponentPropertyLocation); prop != nil {
		if coord, ok := p.places[strings.ToLower(strings.TrimSpace(prop.Value))]; ok {
			c := coord
			ev.Location = &c
		}
	}
	return ev, true
}

func (p *ICSProvider) fetch(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(src)
}
