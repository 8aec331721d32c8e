package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/core/model"
)

// Row is the flat wire view of one agenda entry.
type Row struct {
	InstanceID   string    `json:"instance_id"`
	DefinitionID string    `json:"definition_id"`
	Title        string    `json:"title,omitempty"`
	Category     string    `json:"category,omitempty"`
	Date         time.Time `json:"date"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Status       string    `json:"status"`
	Location     string    `json:"location,omitempty"`
	Lat          float64   `json:"lat,omitempty"`
	Lon          float64   `json:"lon,omitempty"`
	TravelMin    float64   `json:"travel_min,omitempty"`
	TravelKm     float64   `json:"travel_km,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
}

// Rows flattens agenda entries for serialization.
func Rows(entries []agenda.Entry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		inst := e.Instance
		r := Row{
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Date:         inst.Date,
			Start:        inst.Start,
			End:          inst.End,
			Status:       inst.Status.String(),
			Location:     inst.LocationName,
			Lat:          inst.Location.Lat,
			Lon:          inst.Location.Lon,
			TravelMin:    inst.Travel.Duration.Minutes(),
			TravelKm:     inst.Travel.DistanceKm,
			RunID:        e.RunID,
		}
		if inst.Def != nil {
			r.Title = inst.Def.Title
			r.Category = inst.Def.Category
		}
		rows = append(rows, r)
	}
	return rows
}

// WriteJSON writes the agenda to w in JSON format.
func WriteJSON(w io.Writer, entries []agenda.Entry) error {
	enc := json.NewEncoder(w)
	return enc.Encode(Rows(entries))
}

// WriteCSV writes the agenda to w in CSV format.
func WriteCSV(w io.Writer, entries []agenda.Entry) error {
	cw := csv.NewWriter(w)
	header := []string{"instance_id", "definition_id", "title", "category", "date", "start", "end", "status", "location", "travel_min", "travel_km"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range Rows(entries) {
		rec := []string{
			r.InstanceID,
			r.DefinitionID,
			r.Title,
			r.Category,
			r.Date.Format("2006-01-02"),
			r.Start.Format(time.RFC3339),
			r.End.Format(time.RFC3339),
			r.Status,
			r.Location,
			strconv.FormatFloat(r.TravelMin, 'f', -1, 64),
			strconv.FormatFloat(r.TravelKm, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteICS writes the agenda to w as an iCalendar feed, one VEVENT per
// entry. Confirmed and completed occurrences are CONFIRMED, the rest
// TENTATIVE so calendar apps render them distinctly.
func WriteICS(w io.Writer, entries []agenda.Entry) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	for _, e := range entries {
		inst := e.Instance
		ev := cal.AddEvent(inst.ID + "@errandplan")
		ev.SetDtStampTime(e.CommittedAt)
		ev.SetStartAt(inst.Start)
		ev.SetEndAt(inst.End)
		title := inst.DefinitionID
		if inst.Def != nil && inst.Def.Title != "" {
			title = inst.Def.Title
		}
		ev.SetSummary(title)
		if inst.LocationName != "" {
			ev.SetLocation(inst.LocationName)
		}
		switch inst.Status {
		case model.StatusConfirmed, model.StatusCompleted:
			ev.SetStatus(ics.ObjectStatusConfirmed)
		default:
			ev.SetStatus(ics.ObjectStatusTentative)
		}
	}
	_, err := io.WriteString(w, cal.Serialize())
	return err
}
