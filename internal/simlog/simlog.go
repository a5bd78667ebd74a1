// File: internal/simlog/simlog.go
package simlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"pigmentsea/internal/state"
)

// LogToCSV appends a single buy-simulation row into simulations_YYYYMMDD.csv
func LogToCSV(ts time.Time, res state.SimResult) error {
	filename := fmt.Sprintf("simulations_%s.csv", ts.Format("20060102"))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	row := []string{
		ts.Format(time.RFC3339),
		res.TokenID,
		res.Symbol,
		fmt.Sprintf("%.6f", res.Amount),
		fmt.Sprintf("%.4f", res.EnergyBefore),
		fmt.Sprintf("%.4f", res.EnergyAfter),
		fmt.Sprintf("%.4f", res.MomentumBefore),
		fmt.Sprintf("%.4f", res.MomentumAfter),
		fmt.Sprintf("%.4f", res.ActivityBefore),
		fmt.Sprintf("%.4f", res.ActivityAfter),
		fmt.Sprintf("%.4f", res.FrequencyAfter),
	}
	return w.Write(row)
}
