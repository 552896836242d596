// File: internal/signals/log.go
package signals

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// LogToCSV appends a single signal row into signals_YYYYMMDD.csv
func LogToCSV(s Signal) error {
	filename := fmt.Sprintf("signals_%s.csv", s.IssuedAt.Format("20060102"))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	row := []string{
		s.IssuedAt.Format(time.RFC3339),
		s.Symbol,
		string(s.Action),
		fmt.Sprintf("%.4f", s.Price),
		fmt.Sprintf("%.2f", s.Confidence),
	}
	return w.Write(row)
}
