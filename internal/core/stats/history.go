package stats

// HistoryRow is one line of the drill-down table
type HistoryRow struct {
	Name   string `json:"name"`
	Total  int    `json:"total"`
	NoData bool   `json:"noData"`
}

// History folds each bucket into its total. Buckets without data are
// flagged so they can be shown as "no data available" instead of zero.
func History(res *Result) []HistoryRow {
	if res == nil {
		return []HistoryRow{}
	}
	rows := make([]HistoryRow, 0, len(res.Buckets))
	for _, b := range res.Buckets {
		rows = append(rows, HistoryRow{
			Name:   b.Name,
			Total:  b.Total(),
			NoData: !b.HasData,
		})
	}
	return rows
}

// Title is the chart heading, e.g. "Facility Statistics (Month)"
func Title(label string, g Granularity) string {
	return label + " Statistics (" + g.Unit() + ")"
}
