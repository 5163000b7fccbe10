package formatters

import (
	"github.com/gocarina/gocsv"

	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/models"
)

// CSVFormatter renders results as comma-separated rows with a header line.
type CSVFormatter struct{}

type csvRow struct {
	Hostname   string `csv:"hostname"`
	Command    string `csv:"command"`
	Status     string `csv:"status"`
	Output     string `csv:"output"`
	Error      string `csv:"error"`
	DurationMS int64  `csv:"duration_ms"`
}

func (CSVFormatter) Format(results []models.ExecutionResult, _ *executor.ExecutionStats) ([]byte, error) {
	rows := make([]csvRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, csvRow{
			Hostname:   r.Device.DisplayName(),
			Command:    r.Command.Text,
			Status:     string(r.Status),
			Output:     r.Output,
			Error:      r.Error,
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return gocsv.MarshalBytes(&rows)
}

func (CSVFormatter) Extension() string {
	return "csv"
}
