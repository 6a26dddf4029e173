package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/fazecat/mogulfx/Internal/utils/formatting"
)

// History keeps the outcome of every watched order for status reporting.
type History struct {
	mu      sync.RWMutex
	records []WatchResult
}

type HistoryStats struct {
	Total     int
	Filled    int
	Expired   int
	Cancelled int
	FillRate  float64 // 0-100%
	LastEvent time.Time
}

func (h *History) Record(r WatchResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
}

// Recent returns up to limit records, newest last.
func (h *History) Recent(limit int) []WatchResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	records := h.records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return append([]WatchResult(nil), records...)
}

func (h *History) Stats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var s HistoryStats
	for _, r := range h.records {
		s.Total++
		switch r.Status {
		case StatusFilled:
			s.Filled++
		case StatusExpired:
			s.Expired++
		case StatusCancelled:
			s.Cancelled++
		}
		if r.At.After(s.LastEvent) {
			s.LastEvent = r.At
		}
	}
	if s.Total > 0 {
		s.FillRate = float64(s.Filled) / float64(s.Total) * 100
	}
	return s
}

func (h *History) PrintReport() {
	stats := h.Stats()
	width := 70
	fmt.Println("\n" + formatting.Separator(width))
	fmt.Println("📈 ORDER HISTORY")
	fmt.Println(formatting.Separator(width))
	fmt.Printf("Watched Orders:        %d\n", stats.Total)
	fmt.Printf("Filled:                %d (%.1f%% fill rate)\n", stats.Filled, stats.FillRate)
	fmt.Printf("Expired:               %d\n", stats.Expired)
	for _, r := range h.Recent(10) {
		fmt.Printf("  %s  %-8s %-5s @ %-10s %s\n", r.At.Format("2006-01-02 15:04"), r.Order.Symbol,
			r.Order.Direction.Label(), formatting.Price(r.Order.Price), r.Status)
	}
	fmt.Println(formatting.Separator(width) + "\n")
}
