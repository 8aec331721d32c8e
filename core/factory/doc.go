// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation. Travel providers, calendar sources, run-log stores
// and metrics sinks are all wired this way.
//
// Example usage:
//
//	reg := factory.NewRegistry[travel.Provider]()
//	reg.Register("static", func(conf map[string]any) (travel.Provider, error) {
//	    var c struct{ WalkKmh float64 `json:"walk_kmh"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return travel.NewStatic(c.WalkKmh), nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "static", Conf: map[string]any{"walk_kmh": 4.5}})
package factory
