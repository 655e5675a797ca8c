package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Stats are the collection totals over a set of summaries.
type Stats struct {
	Students            int             `json:"students"`
	StudentsWithBalance int             `json:"students_with_balance"`
	Billed              decimal.Decimal `json:"billed"`
	Collected           decimal.Decimal `json:"collected"`
	Outstanding         decimal.Decimal `json:"outstanding"`
	CollectionRate      decimal.Decimal `json:"collection_rate"` // percentage of Billed collected
	ByStatus            map[Status]int  `json:"by_status"`
}

func Totals(summaries []Summary) Stats {
	stats := Stats{
		Students: len(summaries),
		ByStatus: make(map[Status]int, len(SummaryStatuses)),
	}
	for _, st := range SummaryStatuses {
		stats.ByStatus[st] = 0
	}

	for _, s := range summaries {
		stats.Billed = stats.Billed.Add(s.TotalAmount)
		stats.Collected = stats.Collected.Add(s.TotalPaid)
		stats.Outstanding = stats.Outstanding.Add(s.Balance)
		if s.Balance.IsPositive() {
			stats.StudentsWithBalance++
		}
		stats.ByStatus[s.Status]++
	}

	if stats.Billed.IsPositive() {
		stats.CollectionRate = stats.Collected.Mul(hundred).Div(stats.Billed).Round(2)
	}
	return stats
}
