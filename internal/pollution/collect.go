package pollution

import (
	"context"
	"log/slog"

	"github.com/lucasfepe/5G-PollutionMap/internal/openaq"
)

// Source is the subset of the OpenAQ client the collector needs.
type Source interface {
	ListLocations(ctx context.Context, q openaq.Query) ([]openaq.Location, error)
	LatestByLocation(ctx context.Context, locationID int) ([]openaq.Measurement, error)
}

// Stats summarises one collection run.
type Stats struct {
	Locations    int
	Measurements int
	Records      int
	Dropped      int
}

type Collector struct {
	source Source
	query  openaq.Query
	logger *slog.Logger
}

func NewCollector(source Source, query openaq.Query, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{source: source, query: query, logger: logger}
}

// Collect lists the locations in the query area and flattens the latest
// measurements of each one, strictly one request at a time. The first error
// aborts the run and no records are returned.
func (c *Collector) Collect(ctx context.Context) ([]Record, Stats, error) {
	var stats Stats

	locations, err := c.source.ListLocations(ctx, c.query)
	if err != nil {
		return nil, stats, err
	}
	stats.Locations = len(locations)
	c.logger.Debug("locations discovered", "count", len(locations))

	records := make([]Record, 0)
	for _, loc := range locations {
		measurements, err := c.source.LatestByLocation(ctx, loc.ID)
		if err != nil {
			return nil, stats, err
		}
		flat := Flatten(loc, measurements)
		stats.Measurements += len(measurements)
		stats.Dropped += len(measurements) - len(flat)
		records = append(records, flat...)
	}
	stats.Records = len(records)

	c.logger.Info("collection complete",
		"locations", stats.Locations,
		"measurements", stats.Measurements,
		"records", stats.Records,
	)
	return records, stats, nil
}
