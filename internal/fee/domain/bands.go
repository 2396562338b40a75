package domain

import (
	"fmt"
	"sort"
)

// ValidateBands rejects overlapping ranges and ranges outside 1-30. Gaps are
// allowed; a lookup that falls into one fails with ErrBandMissing.
func ValidateBands(bands []AdvanceBand) error {
	if len(bands) == 0 {
		return ErrNoBands
	}
	sorted := make([]AdvanceBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinDays < sorted[j].MinDays })

	for i, band := range sorted {
		if band.MinDays < MinAdvanceDays || band.MaxDays > MaxAdvanceDays || band.MinDays > band.MaxDays {
			return fmt.Errorf("%w: %d-%d", ErrInvalidBand, band.MinDays, band.MaxDays)
		}
		if i > 0 && band.MinDays <= sorted[i-1].MaxDays {
			return fmt.Errorf("%w: %d-%d overlaps %d-%d", ErrInvalidBand,
				band.MinDays, band.MaxDays, sorted[i-1].MinDays, sorted[i-1].MaxDays)
		}
	}
	return nil
}
