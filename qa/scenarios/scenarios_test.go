package scenarios

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenario files found")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	tmp, err := os.CreateTemp(t.TempDir(), "bad*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.WriteString(":"); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmp.Name()); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestErrandDefValidates(t *testing.T) {
	def := ErrandDef{
		ID:          "demo",
		DurationMin: 30,
		WindowStart: "09:00",
		WindowEnd:   "08:00",
		Location:    LocationDef{Kind: "remote"},
	}
	if _, err := def.ToModel(); err == nil {
		t.Fatal("expected inverted window to be rejected")
	}
	def.WindowEnd = "11:00"
	md, err := def.ToModel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.ID != "demo" {
		t.Fatalf("unexpected definition %q", md.ID)
	}
}

func TestBusyDefParse(t *testing.T) {
	b := BusyDef{Title: "work", Date: "2026-03-02", Start: "08:00", End: "17:00"}
	ev, err := b.ToModel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.End.Sub(ev.Start).Hours() != 9 {
		t.Fatalf("unexpected span %v", ev.End.Sub(ev.Start))
	}
	b.Date = "yesterday"
	if _, err := b.ToModel(); err == nil {
		t.Fatal("expected date parse error")
	}
}

func TestLedgerConfigDefaults(t *testing.T) {
	sc := Scenario{}
	cfg, err := sc.LedgerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DayStart >= cfg.DayEnd {
		t.Fatalf("default day bounds inverted: %d >= %d", cfg.DayStart, cfg.DayEnd)
	}
}
