package formatters

import (
	"encoding/json"
	"time"

	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/models"
)

// JSONFormatter renders a report document carrying the batch statistics
// and one entry per result.
type JSONFormatter struct{}

type jsonReport struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Stats       *executor.ExecutionStats `json:"stats,omitempty"`
	Results     []jsonResult             `json:"results"`
}

type jsonResult struct {
	Hostname   string    `json:"hostname"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	Output     string    `json:"output"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count,omitempty"`
}

func (JSONFormatter) Format(results []models.ExecutionResult, stats *executor.ExecutionStats) ([]byte, error) {
	report := jsonReport{
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Results:     make([]jsonResult, 0, len(results)),
	}
	for _, r := range results {
		report.Results = append(report.Results, jsonResult{
			Hostname:   r.Device.DisplayName(),
			Command:    r.Command.Text,
			Status:     string(r.Status),
			Output:     r.Output,
			Error:      r.Error,
			DurationMS: r.Duration.Milliseconds(),
			Timestamp:  r.Timestamp,
			RetryCount: r.RetryCount,
		})
	}
	return json.MarshalIndent(report, "", "  ")
}

func (JSONFormatter) Extension() string {
	return "json"
}
