package secureauth

import "context"

// ActivityLog returns one page of the activity log, newest first, together
// with the total count for the filter. A negative limit falls back to the
// configured default page size; an explicit zero limit returns an empty page
// alongside a valid count. Negative skip is clamped to zero.
func (e *Engine) ActivityLog(ctx context.Context, filter ActivityFilter, skip, limit int) (ActivityPage, error) {
	if e == nil || e.store == nil {
		return ActivityPage{}, ErrEngineNotReady
	}

	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = e.config.Pagination.DefaultLimit
	}

	count, err := e.store.CountActivity(ctx, filter)
	if err != nil {
		return ActivityPage{}, err
	}

	page := ActivityPage{
		Count: count,
		Items: []ActivityEntry{},
	}
	if limit == 0 || count == 0 || int64(skip) >= count {
		return page, nil
	}

	items, err := e.store.ListActivity(ctx, filter, skip, limit)
	if err != nil {
		return ActivityPage{}, err
	}
	page.Items = items

	return page, nil
}
