package aggregate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/excelcw/dtools-pull/internal/cache"
	"github.com/excelcw/dtools-pull/internal/metrics"
	"github.com/excelcw/dtools-pull/internal/model"
)

// API is the subset of the D-Tools client the engine drives.
type API interface {
	GetTimeEntries(ctx context.Context) ([]model.TimeEntry, error)
	GetOpportunities(ctx context.Context) ([]model.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	GetProject(ctx context.Context, id string) (*model.Opportunity, error)
	GetQuote(ctx context.Context, id string) (*model.Quote, error)
	GetChangeOrder(ctx context.Context, id string) (*model.ChangeOrder, error)
}

// CachePolicy gates cache use per entity kind. A false flag forces a live
// fetch for that kind; a successful live fetch always writes through.
type CachePolicy struct {
	TimeEntries     bool
	OpportunityList bool
	Details         bool
	Quotes          bool
	ChangeOrders    bool
}

// Views selects which accumulations are active, derived from the requested
// report columns.
type Views struct {
	Labor   bool
	Service bool
}

// Engine merges time entries, opportunity details, quotes, and change
// orders into per-opportunity labor and service totals. All fetches are
// strictly sequential.
type Engine struct {
	api     API
	store   cache.Store
	policy  CachePolicy
	views   Views
	labor   *Book
	service *Book
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an engine with empty books.
func New(api API, store cache.Store, policy CachePolicy, views Views, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		api:     api,
		store:   store,
		policy:  policy,
		views:   views,
		labor:   NewBook(),
		service: NewBook(),
		metrics: m,
		logger:  logger.With().Str("component", "aggregate").Logger(),
	}
}

// Labor returns the labor-minutes book.
func (e *Engine) Labor() *Book {
	return e.labor
}

// Service returns the service quantity/price book.
func (e *Engine) Service() *Book {
	return e.service
}

// fetchOrCache consults the cache when the kind's prefer flag is set, falls
// back to a live fetch on a miss, and writes successful live results back
// through to the cache.
func fetchOrCache[T any](ctx context.Context, e *Engine, kind cache.Kind, key string, prefer bool, fetch func(context.Context) (T, error)) (T, error) {
	var v T
	if prefer {
		if err := e.store.Load(kind, key, &v); err == nil {
			e.metrics.RecordCache(string(kind), "hit")
			return v, nil
		}
		e.metrics.RecordCache(string(kind), "miss")
	}
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	e.store.Save(kind, key, v)
	return v, nil
}

const snapshotKey = "snapshot"

// LoadWorkedMinutes pulls the bulk time entry snapshot and pre-aggregates
// worked minutes into the labor book by project id. Failure is fatal to the
// run: without worked minutes the labor view would silently under-report.
func (e *Engine) LoadWorkedMinutes(ctx context.Context) error {
	entries, err := fetchOrCache(ctx, e, cache.KindTimeEntries, snapshotKey, e.policy.TimeEntries,
		func(ctx context.Context) ([]model.TimeEntry, error) {
			return e.api.GetTimeEntries(ctx)
		})
	if err != nil {
		return fmt.Errorf("retrieving time entries: %w", err)
	}
	for _, te := range entries {
		e.labor.Touch(te.ProjectID).Add(te.LaborType, Pair{Worked: float64(te.HoursWorkedInMinutes)})
	}
	e.logger.Info().Int("entries", len(entries)).Msg("worked minutes aggregated")
	return nil
}

// LoadOpportunities pulls the opportunity list snapshot. Failure is fatal.
func (e *Engine) LoadOpportunities(ctx context.Context) ([]model.Opportunity, error) {
	opps, err := fetchOrCache(ctx, e, cache.KindOpportunityList, snapshotKey, e.policy.OpportunityList,
		func(ctx context.Context) ([]model.Opportunity, error) {
			return e.api.GetOpportunities(ctx)
		})
	if err != nil {
		return nil, fmt.Errorf("retrieving opportunity list: %w", err)
	}
	return opps, nil
}

// Process fetches one opportunity's detail and accumulates its labor and
// service contributions. A detail failure skips the opportunity entirely;
// the caller emits no row for it but the run continues.
func (e *Engine) Process(ctx context.Context, opp model.Opportunity) (*model.Opportunity, error) {
	detail, err := fetchOrCache(ctx, e, cache.KindDetail, opp.ID, e.policy.Details,
		func(ctx context.Context) (model.Opportunity, error) {
			if opp.Won() {
				p, err := e.api.GetProject(ctx, opp.ID)
				if err != nil {
					return model.Opportunity{}, err
				}
				return *p, nil
			}
			o, err := e.api.GetOpportunity(ctx, opp.ID)
			if err != nil {
				return model.Opportunity{}, err
			}
			return *o, nil
		})
	if err != nil {
		e.logger.Error().Err(err).Str("opportunity", opp.ID).Msg("unable to retrieve opportunity detail")
		e.metrics.RecordSkipped("opportunity")
		return nil, err
	}

	if !e.views.Labor && !e.views.Service {
		return &detail, nil
	}

	// An opportunity touched by either path always has a zero total, even
	// when nothing below contributes.
	if e.views.Labor {
		e.labor.Touch(opp.ID)
	}
	if e.views.Service {
		e.service.Touch(opp.ID)
	}

	if opp.Won() {
		e.accumulateProject(ctx, opp.ID, &detail)
	} else {
		e.selectBestQuote(ctx, opp.ID, &detail)
	}
	return &detail, nil
}

// accumulateProject adds a won project's own labor and service lines, then
// layers accepted change orders on top. Accepted change orders are
// additive, never replacing.
func (e *Engine) accumulateProject(ctx context.Context, id string, detail *model.Opportunity) {
	e.addContribution(id, detail.LaborTypes, detail.Items)

	for _, coID := range detail.ChangeOrderIDs {
		co, err := fetchOrCache(ctx, e, cache.KindChangeOrder, coID, e.policy.ChangeOrders,
			func(ctx context.Context) (model.ChangeOrder, error) {
				c, err := e.api.GetChangeOrder(ctx, coID)
				if err != nil {
					return model.ChangeOrder{}, err
				}
				return *c, nil
			})
		if err != nil {
			e.logger.Warn().Err(err).Str("opportunity", id).Str("change_order", coID).Msg("unable to retrieve change order")
			e.metrics.RecordSkipped("change_order")
			continue
		}
		if !co.Accepted() {
			continue
		}
		e.addContribution(id, co.LaborTypes, co.Items)
	}
}

// addContribution folds labor types and Service-category items into the
// active books.
func (e *Engine) addContribution(id string, labor []model.LaborType, items []model.ServiceItem) {
	if e.views.Labor {
		t := e.labor.Touch(id)
		for _, lt := range labor {
			t.Add(lt.Name, Pair{Quoted: float64(lt.Minutes())})
		}
	}
	if e.views.Service {
		t := e.service.Touch(id)
		for _, it := range items {
			if !it.IsService() {
				continue
			}
			t.Add(it.Name, Pair{Quoted: it.Quantity, Worked: it.Price()})
		}
	}
}

// selectBestQuote walks a not-yet-won opportunity's quotes and keeps only
// the best one: max total labor minutes for the labor view and,
// independently, max total service price for the service view. The two
// selections may pick different quotes. Ties keep the first encountered.
// The winner's breakdown replaces any prior accumulator state.
func (e *Engine) selectBestQuote(ctx context.Context, id string, detail *model.Opportunity) {
	var (
		bestMinutes int64
		bestLabor   map[string]Pair
		bestPrice   float64
		bestService map[string]Pair
	)

	for _, quoteID := range detail.QuoteIDs {
		quote, err := fetchOrCache(ctx, e, cache.KindQuote, quoteID, e.policy.Quotes,
			func(ctx context.Context) (model.Quote, error) {
				q, err := e.api.GetQuote(ctx, quoteID)
				if err != nil {
					return model.Quote{}, err
				}
				return *q, nil
			})
		if err != nil {
			e.logger.Warn().Err(err).Str("opportunity", id).Str("quote", quoteID).Msg("unable to retrieve quote")
			e.metrics.RecordSkipped("quote")
			continue
		}

		if e.views.Labor {
			if mins := quote.TotalLaborMinutes(); mins > bestMinutes || bestLabor == nil {
				bestMinutes = mins
				bestLabor = laborBreakdown(quote)
			}
		}
		if e.views.Service {
			if price := quote.TotalServicePrice(); price > bestPrice || bestService == nil {
				bestPrice = price
				bestService = serviceBreakdown(quote)
			}
		}
	}

	if bestLabor != nil {
		e.labor.Touch(id).Replace(bestLabor)
	}
	if bestService != nil {
		e.service.Touch(id).Replace(bestService)
	}
}

func laborBreakdown(q model.Quote) map[string]Pair {
	breakdown := make(map[string]Pair, len(q.LaborTypes))
	for _, lt := range q.LaborTypes {
		breakdown[lt.Name] = breakdown[lt.Name].add(Pair{Quoted: float64(lt.Minutes())})
	}
	return breakdown
}

func serviceBreakdown(q model.Quote) map[string]Pair {
	breakdown := make(map[string]Pair)
	for _, it := range q.Items {
		if !it.IsService() {
			continue
		}
		breakdown[it.Name] = breakdown[it.Name].add(Pair{Quoted: it.Quantity, Worked: it.Price()})
	}
	return breakdown
}
