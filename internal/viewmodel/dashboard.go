package viewmodel

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/medscan-console/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DashboardState summarizes recent activity
type DashboardState struct {
	User           *domain.User
	Recent         []domain.AnalysisRecord
	Consultations  int
	UrgentAnalyses int
	TotalFindings  int
	IsLoading      bool
	LastError      string
}

// Dashboard is the landing screen after login
type Dashboard struct {
	mu            sync.Mutex
	state         DashboardState
	analyses      AnalysisAPI
	consultations ConsultationAPI
	deps          Deps
	limit         int
}

// NewDashboard creates the dashboard view-model
func NewDashboard(analyses AnalysisAPI, consultations ConsultationAPI, deps Deps, recentLimit int) *Dashboard {
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &Dashboard{
		analyses:      analyses,
		consultations: consultations,
		deps:          deps.withDefaults(),
		limit:         recentLimit,
	}
}

// Load fetches recent analyses and consultations concurrently
func (d *Dashboard) Load(ctx context.Context) error {
	if err := d.deps.requireAuth(); err != nil {
		return err
	}

	d.mu.Lock()
	d.state.IsLoading = true
	d.mu.Unlock()

	var recent []domain.AnalysisRecord
	var rooms []domain.ConsultationCase

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = d.analyses.History(gctx, d.limit)
		return err
	})
	g.Go(func() error {
		var err error
		rooms, err = d.consultations.List(gctx)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.IsLoading = false
	if err != nil {
		d.state.LastError = DisplayMessage(err, "Failed to load dashboard")
		d.deps.Logger.WithError(err).Warn("Failed to load dashboard")
		return err
	}

	if recent == nil {
		recent = []domain.AnalysisRecord{}
	}
	d.state = DashboardState{
		User:          d.deps.Session.User(),
		Recent:        recent,
		Consultations: len(rooms),
	}
	for _, a := range recent {
		d.state.TotalFindings += len(a.Findings)
		switch strings.ToLower(a.Urgency()) {
		case "immediate", "urgent", "critical":
			d.state.UrgentAnalyses++
		}
	}
	return nil
}

// Snapshot returns a copy of the dashboard state
func (d *Dashboard) Snapshot() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Recent = slices.Clone(d.state.Recent)
	return s
}
