package config

import (
	"github.com/kilianp07/errandplan/infra/trigger"
)

// TriggerConfig wires external replan triggers and schedule announcements.
type TriggerConfig struct {
	// MQTTEnabled connects the MQTT trigger; the cron schedule runs either way.
	MQTTEnabled bool           `json:"mqtt_enabled"`
	MQTT        trigger.Config `json:"mqtt"`
}
