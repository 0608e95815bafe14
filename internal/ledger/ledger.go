// Package ledger presents the filtered, sorted, paginated appointment
// list over a cached in-memory copy of the server's data.
package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/gateway"
	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/internal/prefs"
	"github.com/medisched/scheduling-client/pkg/clock"
	"github.com/medisched/scheduling-client/pkg/logger"
)

const (
	viewName        = "appointments"
	pageSizeField   = "page_size"
	defaultPageSize = 10

	// fetchPageSize bounds the cached copy; filtering and slicing are
	// client-side over this working set.
	fetchPageSize = 500
)

// Gateway is the slice of the API client the ledger needs.
type Gateway interface {
	List(ctx context.Context, page, pageSize int, filters gateway.ListFilters) ([]model.Booking, model.Pagination, error)
	Stats(ctx context.Context) (*model.Stats, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) (*model.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ViewModel owns the cached appointment list and its presentation
// state. It is the single writer of the cache; all methods are expected
// to be called from the UI event loop.
type ViewModel struct {
	gw     Gateway
	view   *prefs.View
	logger *logger.Logger
	now    func() time.Time

	cached   []model.Booking
	stats    *model.Stats
	filter   model.LedgerFilter
	page     int
	pageSize int

	// reloadGen discards reloads superseded by a newer one.
	reloadGen uint64
}

// Option customises a ViewModel.
type Option func(*ViewModel)

// WithNow injects the clock used for date buckets and ordering.
func WithNow(now func() time.Time) Option {
	return func(vm *ViewModel) { vm.now = now }
}

// NewViewModel hydrates presentation preferences and subscribes to the
// mutation bus. Hydration never writes back to the preference store.
func NewViewModel(ctx context.Context, gw Gateway, store prefs.Store, bus *Bus, log *logger.Logger, opts ...Option) *ViewModel {
	if log == nil {
		log = logger.Nop()
	}
	vm := &ViewModel{
		gw:     gw,
		view:   prefs.NewView(store, viewName),
		logger: log.WithComponent("ledger"),
		now:    time.Now,
		page:   1,
		filter: model.LedgerFilter{Bucket: model.BucketAll},
	}
	for _, opt := range opts {
		opt(vm)
	}

	vm.view.BeginHydration()
	vm.pageSize = vm.view.GetInt(ctx, pageSizeField, defaultPageSize)
	vm.view.EndHydration()
	// The store is shared and external; a nonsensical stored size must
	// not break page slicing.
	if vm.pageSize < 1 {
		vm.pageSize = defaultPageSize
	}

	if bus != nil {
		bus.Subscribe(func(Event) {
			if err := vm.Reload(context.Background()); err != nil {
				vm.logger.Error(err, "reload after mutation failed")
			}
		})
	}
	return vm
}

// Reload refreshes the cached list, then the stats. The list fetch
// always completes before stats are recomputed, and a reload overtaken
// by a newer one discards its results.
func (vm *ViewModel) Reload(ctx context.Context) error {
	vm.reloadGen++
	gen := vm.reloadGen

	items, _, err := vm.gw.List(ctx, 1, fetchPageSize, gateway.ListFilters{})
	if err != nil {
		return err
	}
	if gen != vm.reloadGen {
		vm.logger.Debug("discarding superseded reload")
		return nil
	}
	vm.cached = items

	stats, err := vm.gw.Stats(ctx)
	if err != nil {
		return err
	}
	if gen != vm.reloadGen {
		return nil
	}
	vm.stats = stats
	return nil
}

// SetFilter replaces the predicate set and resets to the first page.
func (vm *ViewModel) SetFilter(f model.LedgerFilter) {
	vm.filter = f
	vm.page = 1
}

// Filter returns the active predicate set.
func (vm *ViewModel) Filter() model.LedgerFilter {
	return vm.filter
}

// SetPage moves to the given page, clamped to the valid range.
func (vm *ViewModel) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	vm.page = page
}

// SetPageSize changes and persists the page size preference.
func (vm *ViewModel) SetPageSize(ctx context.Context, size int) {
	if size < 1 {
		return
	}
	vm.pageSize = size
	vm.page = 1
	if err := vm.view.SetInt(ctx, pageSizeField, size); err != nil {
		vm.logger.Error(err, "failed to persist page size")
	}
}

// PageSize returns the current page size.
func (vm *ViewModel) PageSize() int {
	return vm.pageSize
}

// Page applies the filter pipeline and ordering, then slices the
// current page out of the result.
func (vm *ViewModel) Page() ([]model.Booking, model.Pagination) {
	filtered := vm.filtered()
	vm.order(filtered)

	total := len(filtered)
	totalPages := (total + vm.pageSize - 1) / vm.pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	page := vm.page
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * vm.pageSize
	end := start + vm.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return filtered[start:end], model.Pagination{
		Page:       page,
		PageSize:   vm.pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
}

// Find looks a booking up in the cached list.
func (vm *ViewModel) Find(id uuid.UUID) (*model.Booking, bool) {
	for i := range vm.cached {
		if vm.cached[i].ID == id {
			b := vm.cached[i]
			return &b, true
		}
	}
	return nil, false
}

// Stats returns the cached statistics summary, which may be nil before
// the first reload.
func (vm *ViewModel) Stats() *model.Stats {
	return vm.stats
}

// CompletionRate is completed/total as an integer percentage.
func (vm *ViewModel) CompletionRate() int {
	if vm.stats == nil {
		return 0
	}
	return vm.stats.CompletionRate()
}

// UpdateStatus transitions a booking's status and refreshes the view.
func (vm *ViewModel) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) (*model.Booking, error) {
	booking, err := vm.gw.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if err := vm.Reload(ctx); err != nil {
		vm.logger.Error(err, "reload after status update failed")
	}
	return booking, nil
}

// Delete removes a booking and refreshes the view.
func (vm *ViewModel) Delete(ctx context.Context, id uuid.UUID) error {
	if err := vm.gw.Delete(ctx, id); err != nil {
		return err
	}
	if err := vm.Reload(ctx); err != nil {
		vm.logger.Error(err, "reload after delete failed")
	}
	return nil
}

// filtered applies the predicate pipeline in order; every predicate
// must pass.
func (vm *ViewModel) filtered() []model.Booking {
	if vm.filter.IsZero() {
		out := make([]model.Booking, len(vm.cached))
		copy(out, vm.cached)
		return out
	}

	now := vm.now()
	today := clock.FormatDate(now)
	weekStart := clock.FormatDate(clock.StartOfWeek(now))
	weekEnd := clock.FormatDate(clock.StartOfWeek(now).AddDate(0, 0, 7))
	monthPrefix := now.Format("2006-01")

	search := strings.ToLower(strings.TrimSpace(vm.filter.Search))

	var out []model.Booking
	for _, b := range vm.cached {
		if search != "" && !matchesSearch(&b, search) {
			continue
		}
		if vm.filter.Status != "" && b.Status != vm.filter.Status {
			continue
		}
		if vm.filter.Type != "" && b.Type != vm.filter.Type {
			continue
		}
		if vm.filter.Priority != "" && b.Priority != vm.filter.Priority {
			continue
		}
		switch vm.filter.Bucket {
		case model.BucketToday:
			if b.Date != today {
				continue
			}
		case model.BucketThisWeek:
			if b.Date < weekStart || b.Date >= weekEnd {
				continue
			}
		case model.BucketThisMonth:
			if !strings.HasPrefix(b.Date, monthPrefix) {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

func matchesSearch(b *model.Booking, search string) bool {
	for _, field := range []string{b.PatientName, b.ClinicianName, string(b.Type), b.Reason} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// order sorts future-or-today bookings first, ascending by date, then
// past bookings descending by date. Same-date ties always order by
// ascending start time.
func (vm *ViewModel) order(items []model.Booking) {
	today := clock.FormatDate(vm.now())
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		aFuture := a.Date >= today
		bFuture := b.Date >= today
		if aFuture != bFuture {
			return aFuture
		}
		if a.Date != b.Date {
			if aFuture {
				return a.Date < b.Date
			}
			return a.Date > b.Date
		}
		return a.StartTime < b.StartTime
	})
}
