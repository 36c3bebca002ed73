package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/veerylabs/rangemap/internal/zonal"
)

var statsHeader = []string{"species", "region_id", "season", "statistic", "value", "produced_at"}

// StatsCSV writes zonal statistics to w in a fixed column order.
func StatsCSV(w io.Writer, species string, stats []zonal.Stat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsHeader); err != nil {
		return fmt.Errorf("export: writing csv header: %w", err)
	}
	for _, s := range stats {
		rec := []string{
			species,
			s.RegionID,
			string(s.Season),
			string(s.Kind),
			strconv.FormatFloat(s.Value, 'g', -1, 64),
			s.ProducedAt.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: writing csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatsCSV writes zonal statistics to path.
func WriteStatsCSV(path, species string, stats []zonal.Stat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	if err := StatsCSV(f, species, stats); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
