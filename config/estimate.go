package config

// EstimateConfig tunes the learning duration estimator.
type EstimateConfig struct {
	// Window is how many recent observations per errand feed the estimate;
	// zero keeps the built-in default.
	Window int `json:"window"`
}
