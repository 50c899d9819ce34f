package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/transactions"
)

type CredentialLister interface {
	ListAll(ctx context.Context, env config.Environment) ([]credentials.Credential, error)
}

// Result is the health of one link at the time of a check
type Result struct {
	CredentialID string
	UserID       string
	Provider     credentials.Provider
	OK           bool
	Accounts     int
	Duration     time.Duration
	Err          error
}

// Monitor periodically lists the accounts of every link to spot broken ones early, before a
// user opens the dashboard.
type Monitor struct {
	cfg     *config.Config
	store   CredentialLister
	fetcher *transactions.Fetcher
	// writer is nil when influx is not configured
	writer Writer

	running sync.Mutex
}

func New(cfg *config.Config, store CredentialLister, fetcher *transactions.Fetcher, writer Writer) *Monitor {
	return &Monitor{cfg: cfg, store: store, fetcher: fetcher, writer: writer}
}

// Check runs one pass over all links of the configured environment
func (m *Monitor) Check(ctx context.Context) ([]Result, error) {
	creds, err := m.store.ListAll(ctx, m.cfg.Environment)
	if err != nil {
		return nil, err
	}
	klog.Infof("Checking %d links\n", len(creds))

	results := make([]Result, len(creds))
	var g errgroup.Group
	g.SetLimit(max(m.cfg.Fetch.MaxConcurrent, 1))
	for i, cred := range creds {
		g.Go(func() error {
			results[i] = m.checkCredential(ctx, cred)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
			slog.Warn("link is unhealthy", "credential_id", r.CredentialID, "user_id", r.UserID, "provider", r.Provider, "error", r.Err)
		}
	}
	klog.Infof("Link check done: %d healthy, %d failing\n", len(results)-failed, failed)

	if m.writer != nil && len(results) > 0 {
		if err := m.writeResults(results); err != nil {
			return results, err
		}
	}

	return results, nil
}

func (m *Monitor) checkCredential(ctx context.Context, cred credentials.Credential) Result {
	r := Result{CredentialID: cred.ID, UserID: cred.UserID, Provider: cred.ServiceProvider}
	start := time.Now()

	adapter, err := m.fetcher.Adapter(cred.ServiceProvider)
	if err != nil {
		r.Err = err
		return r
	}

	accounts, err := adapter.ListAccounts(ctx, cred)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		return r
	}

	r.OK = true
	r.Accounts = len(accounts)
	return r
}

func (m *Monitor) writeResults(results []Result) error {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  m.cfg.Monitor.InfluxDatabase,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, r := range results {
		tags := map[string]string{
			"credential_id": r.CredentialID,
			"provider":      string(r.Provider),
			"environment":   string(m.cfg.Environment),
		}
		fields := map[string]interface{}{
			"ok":          r.OK,
			"accounts":    r.Accounts,
			"duration_ms": r.Duration.Milliseconds(),
		}

		pt, err := influx.NewPoint(m.cfg.Monitor.InfluxMeasurement, tags, fields, now)
		if err != nil {
			return fmt.Errorf("failed to create point for credential %s: %w", r.CredentialID, err)
		}
		bp.AddPoint(pt)
	}

	if err := m.writer.Write(bp); err != nil {
		return fmt.Errorf("error writing to influx: %w", err)
	}

	klog.Infof("Wrote %d link health points to influx\n", len(results))
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	// a slow pass must not overlap with the next tick
	if !m.running.TryLock() {
		slog.Warn("previous link check still running, skipping")
		return
	}
	defer m.running.Unlock()

	if _, err := m.Check(ctx); err != nil {
		slog.Error("link check failed", "error", err)
	}
}

// Run checks once right away, then on the configured cron schedule until ctx is done
func (m *Monitor) Run(ctx context.Context, singleRun bool) error {
	m.run(ctx)
	if singleRun {
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(m.cfg.Monitor.Schedule, func() { m.run(ctx) }); err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", m.cfg.Monitor.Schedule, err)
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}
