package formatters

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/models"
)

// YAMLFormatter renders results as a YAML list, one entry per result.
type YAMLFormatter struct{}

type yamlResult struct {
	Hostname   string    `yaml:"hostname"`
	Command    string    `yaml:"command"`
	Status     string    `yaml:"status"`
	Output     string    `yaml:"output"`
	Error      string    `yaml:"error,omitempty"`
	DurationMS int64     `yaml:"duration_ms"`
	Timestamp  time.Time `yaml:"timestamp"`
}

func (YAMLFormatter) Format(results []models.ExecutionResult, _ *executor.ExecutionStats) ([]byte, error) {
	rows := make([]yamlResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, yamlResult{
			Hostname:   r.Device.DisplayName(),
			Command:    r.Command.Text,
			Status:     string(r.Status),
			Output:     r.Output,
			Error:      r.Error,
			DurationMS: r.Duration.Milliseconds(),
			Timestamp:  r.Timestamp,
		})
	}
	return yaml.Marshal(rows)
}

func (YAMLFormatter) Extension() string {
	return "yaml"
}
