package plugins

import (
	"time"

	"github.com/kilianp07/errandplan/auth"
	"github.com/kilianp07/errandplan/config"
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/core/travel"
	"github.com/kilianp07/errandplan/infra/kpi"
	infratravel "github.com/kilianp07/errandplan/infra/travel"
)

func init() {
	RegisterRunLogStore("jsonl", func(conf config.RunLogConfig) (runlog.Store, error) {
		return runlog.NewJSONLStore(conf.Path)
	})
	RegisterRunLogStore("rotating", func(conf config.RunLogConfig) (runlog.Store, error) {
		return runlog.NewRotatingJSONLStore(conf.Path, conf.MaxSizeMB, conf.MaxBackups, conf.MaxAgeDays)
	})
	RegisterRunLogStore("sqlite", func(conf config.RunLogConfig) (runlog.Store, error) {
		return runlog.NewSQLiteStore(conf.Path)
	})

	RegisterUsageStore("memory", func(config.KPIConfig) (usage.Store, error) {
		return usage.NewMemoryStore(), nil
	})
	RegisterUsageStore("sqlite", func(conf config.KPIConfig) (usage.Store, error) {
		return kpi.NewSQLiteStore(conf.Path)
	})

	RegisterTravel("static", func(_ config.TravelConfig, places []travel.Place) (travel.Provider, travel.Resolver, error) {
		provider := travel.NewStatic()
		return provider, travel.NewStaticResolver(places, provider), nil
	})
	RegisterTravel("http", func(conf config.TravelConfig, _ []travel.Place) (travel.Provider, travel.Resolver, error) {
		timeout := time.Duration(conf.TimeoutSeconds) * time.Second
		if conf.TokenURL != "" {
			creds := auth.Conf{
				ClientID:     conf.ClientID,
				ClientSecret: conf.ClientSecret,
				TokenURL:     conf.TokenURL,
			}
			client := infratravel.NewMatrixClientOAuth(conf.URL, creds, timeout)
			return client, client, nil
		}
		client := infratravel.NewMatrixClient(conf.URL, conf.Token, timeout)
		return client, client, nil
	})
}
