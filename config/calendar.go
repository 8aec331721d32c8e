package config

// CalendarConfig lists the busy-calendar feeds the planner reads.
type CalendarConfig struct {
	// Sources are ICS feed URLs or local file paths.
	Sources []string `json:"sources"`
	// IgnoreTitles marks events whose summary matches as non-blocking.
	IgnoreTitles []string `json:"ignore_titles"`
	// TimeoutSeconds bounds each feed fetch.
	TimeoutSeconds int `json:"timeout_seconds"`
}
