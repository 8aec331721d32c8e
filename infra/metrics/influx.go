package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/infra/logger"
)

// InfluxSink writes planning records to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRunSummary writes one planning pass as a single point.
func (s *InfluxSink) RecordRunSummary(run coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("run_id", run.RunID).
		AddTag("component", "planner").
		AddField("placed", run.Placed).
		AddField("unschedulable", run.Unschedulable).
		AddField("skipped", run.Skipped).
		AddField("cascades", run.Cascades).
		AddField("cascade_wins", run.CascadeWins).
		AddField("horizon_days", run.HorizonDays).
		AddField("elapsed_ms", round3(float64(run.Elapsed)/float64(time.Millisecond))).
		SetTime(run.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlacements writes each committed instance, timed at its scheduled
// start so dashboards overlay the agenda.
func (s *InfluxSink) RecordPlacements(recs []coremetrics.PlacementRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("placement").
			AddTag("definition_id", r.DefinitionID).
			AddTag("category", r.Category).
			AddTag("access", r.Access).
			AddTag("cascaded", strconv.FormatBool(r.Cascaded)).
			AddTag("component", "planner").
			AddField("duration_min", round3(r.End.Sub(r.Start).Minutes())).
			AddField("travel_min", round3(r.Travel.Minutes())).
			AddField("travel_km", round3(r.TravelKm)).
			AddField("transfers", r.Transfers).
			SetTime(r.Start)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnschedulable writes each occurrence that found no slot.
func (s *InfluxSink) RecordUnschedulable(recs []coremetrics.UnschedulableRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("unschedulable").
			AddTag("definition_id", r.DefinitionID).
			AddTag("reason", r.Reason).
			AddTag("component", "planner").
			AddField("count", 1).
			SetTime(r.Date)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordTrigger writes a replan trigger event.
func (s *InfluxSink) RecordTrigger(ev coremetrics.TriggerEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("replan_trigger").
		AddTag("source", ev.Source).
		AddTag("component", "planner").
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
