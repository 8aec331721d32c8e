// Package infra contains technical adapters such as the ICS calendar
// fetcher, the travel matrix client, the MQTT trigger and the metrics
// exporters. These packages should depend only on the interfaces
// defined in the core packages.
package infra
