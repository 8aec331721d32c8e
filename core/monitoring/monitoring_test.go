package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	err     error
	msg     string
	tags    map[string]string
	flushed time.Duration
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CaptureMessage(msg string, tags map[string]string) {
	r.msg = msg
	r.tags = tags
}
func (r *recordMonitor) Recover()              {}
func (r *recordMonitor) Flush(d time.Duration) { r.flushed = d }

func TestInitRoutesCaptures(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	boom := errors.New("matrix service unreachable")
	CaptureException(boom, map[string]string{"source": "travel"})
	if mon.err != boom || mon.tags["source"] != "travel" {
		t.Fatalf("exception not routed: err=%v tags=%v", mon.err, mon.tags)
	}

	CaptureMessage("pass left occurrences unschedulable", map[string]string{"count": "2"})
	if mon.msg == "" || mon.tags["count"] != "2" {
		t.Fatalf("message not routed: msg=%q tags=%v", mon.msg, mon.tags)
	}

	Flush(time.Second)
	if mon.flushed != time.Second {
		t.Fatalf("flush not routed: %v", mon.flushed)
	}
}

func TestInitIgnoresNil(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	Init(nil)
	CaptureMessage("still routed", nil)
	if mon.msg != "still routed" {
		t.Fatal("nil Init must keep the previous monitor")
	}
}
