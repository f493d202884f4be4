package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"refuge/pkg/logger"
)

// AuditCollector exposes gauges computed from the prediction audit database
// on every scrape.
type AuditCollector struct {
	log *logger.Logger
	db  *sqlx.DB

	totalPredictions    *prometheus.Desc
	predictionsByProc   *prometheus.Desc
	avgRateLastDay      *prometheus.Desc
	predictionsLastHour *prometheus.Desc
}

// NewAuditCollector creates a collector over the audit database.
func NewAuditCollector(log *logger.Logger, db *sqlx.DB) *AuditCollector {
	return &AuditCollector{
		log: log,
		db:  db,

		totalPredictions: prometheus.NewDesc(
			"refuge_audit_predictions_total",
			"Total number of audited predictions",
			nil, nil,
		),
		predictionsByProc: prometheus.NewDesc(
			"refuge_audit_predictions_by_procedure",
			"Audited predictions by procedure type",
			[]string{"procedure"}, nil,
		),
		avgRateLastDay: prometheus.NewDesc(
			"refuge_audit_avg_rate_24h",
			"Average predicted acceptance rate over the last 24 hours (0-1 scale)",
			nil, nil,
		),
		predictionsLastHour: prometheus.NewDesc(
			"refuge_audit_predictions_last_hour",
			"Predictions served in the last hour",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *AuditCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalPredictions
	ch <- c.predictionsByProc
	ch <- c.avgRateLastDay
	ch <- c.predictionsLastHour
}

// Collect implements prometheus.Collector
func (c *AuditCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectTotals(ctx, ch)
	c.collectByProcedure(ctx, ch)
	c.collectRecent(ctx, ch)
}

func (c *AuditCollector) collectTotals(ctx context.Context, ch chan<- prometheus.Metric) {
	var total float64
	if err := c.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM predictions"); err != nil {
		c.log.Debugf("Audit collector: total count failed: %v", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalPredictions, prometheus.GaugeValue, total)
}

func (c *AuditCollector) collectByProcedure(ctx context.Context, ch chan<- prometheus.Metric) {
	rows := []struct {
		Procedure string  `db:"procedure"`
		Count     float64 `db:"count"`
	}{}

	query := `SELECT procedure, COUNT(*) AS count FROM predictions GROUP BY procedure`
	if err := c.db.SelectContext(ctx, &rows, query); err != nil {
		c.log.Debugf("Audit collector: procedure breakdown failed: %v", err)
		return
	}
	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(c.predictionsByProc, prometheus.GaugeValue, row.Count, row.Procedure)
	}
}

func (c *AuditCollector) collectRecent(ctx context.Context, ch chan<- prometheus.Metric) {
	var avgRate *float64
	query := `SELECT AVG(rate) FROM predictions WHERE created_at >= ?`
	if err := c.db.GetContext(ctx, &avgRate, query, time.Now().UTC().Add(-24*time.Hour)); err != nil {
		c.log.Debugf("Audit collector: 24h average failed: %v", err)
	} else if avgRate != nil {
		ch <- prometheus.MustNewConstMetric(c.avgRateLastDay, prometheus.GaugeValue, *avgRate)
	}

	var lastHour float64
	query = `SELECT COUNT(*) FROM predictions WHERE created_at >= ?`
	if err := c.db.GetContext(ctx, &lastHour, query, time.Now().UTC().Add(-time.Hour)); err != nil {
		c.log.Debugf("Audit collector: last-hour count failed: %v", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.predictionsLastHour, prometheus.GaugeValue, lastHour)
}

// RegisterAuditCollector registers the audit collector, logging instead of
// panicking on duplicate registration.
func RegisterAuditCollector(log *logger.Logger, db *sqlx.DB) {
	if err := prometheus.Register(NewAuditCollector(log, db)); err != nil {
		log.Warnf("Failed to register audit collector: %v", err)
	}
}
