package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/repo"
)

var (
	tableRowsDesc = prometheus.NewDesc(
		"carry_table_rows",
		"Number of rows per marketplace table.",
		[]string{"table"}, nil,
	)
	tableMaxIDDesc = prometheus.NewDesc(
		"carry_table_max_id",
		"Highest id per marketplace table.",
		[]string{"table"}, nil,
	)
)

// TableCollector exports repo.TableStats for requests and offers at scrape
// time. A failing query skips that table for the scrape.
type TableCollector struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewTableCollector returns a collector querying db with a per-scrape timeout.
func NewTableCollector(db *gorm.DB, timeout time.Duration) *TableCollector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TableCollector{db: db, timeout: timeout}
}

// Describe implements prometheus.Collector.
func (c *TableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- tableRowsDesc
	ch <- tableMaxIDDesc
}

// Collect implements prometheus.Collector.
func (c *TableCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	tables := []struct {
		name  string
		stats func(context.Context, *gorm.DB) (repo.TableStats, error)
	}{
		{"requests", repo.RequestsStats},
		{"offers", repo.OffersStats},
	}
	for _, t := range tables {
		st, err := t.stats(ctx, c.db)
		if err != nil {
			log.Warn().Err(err).Str("table", t.name).Msg("table stats")
			continue
		}
		ch <- prometheus.MustNewConstMetric(tableRowsDesc, prometheus.GaugeValue, float64(st.Count), t.name)
		ch <- prometheus.MustNewConstMetric(tableMaxIDDesc, prometheus.GaugeValue, float64(st.MaxID), t.name)
	}
}
