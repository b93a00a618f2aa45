package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/origin-gateway/internal/logging"
)

// Pruner deletes aged origin_audit rows on a cron schedule.
type Pruner struct {
	db       *sql.DB
	days     int
	schedule *cron.Cron
	log      *logging.Logger
}

// NewPruner validates the cron schedule and prepares the pruner. A
// retention of zero days disables pruning entirely and returns a nil
// pruner.
func NewPruner(db *sql.DB, retentionDays int, schedule string, log *logging.Logger) (*Pruner, error) {
	if retentionDays == 0 {
		return nil, nil
	}

	c := cron.New()
	p := &Pruner{
		db:       db,
		days:     retentionDays,
		schedule: c,
		log:      log,
	}
	if _, err := c.AddFunc(schedule, p.prune); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins running the schedule in its own goroutine.
func (p *Pruner) Start() {
	p.schedule.Start()
}

// Stop halts the schedule. A prune already in flight completes.
func (p *Pruner) Stop() {
	p.schedule.Stop()
}

func (p *Pruner) prune() {
	cutoff := time.Now().AddDate(0, 0, -p.days)
	result, err := p.db.Exec(`DELETE FROM origin_audit WHERE recorded_at < $1`, cutoff)
	if err != nil {
		p.log.WithError(err).Warn("audit prune failed")
		return
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		p.log.WithField("rows", rows).Info("pruned aged audit entries")
	}
}
