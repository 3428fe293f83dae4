package season

// MonthPage is a link to one month of a season's schedule.
type MonthPage struct {
	Month string
	URL   string
}

// FilterRelevant keeps the pages whose month window overlaps rng, in their
// original order. A nil range keeps every page. Pages for months outside
// the September-June calendar never overlap a range.
func FilterRelevant(pages []MonthPage, rng *DateRange, s Season) ([]MonthPage, error) {
	if rng == nil {
		return pages, nil
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	relevant := make([]MonthPage, 0, len(pages))
	for _, page := range pages {
		window, ok := s.Window(page.Month)
		if !ok {
			continue
		}
		if !window.End.Before(rng.Start) && !window.Start.After(rng.End) {
			relevant = append(relevant, page)
		}
	}
	return relevant, nil
}
