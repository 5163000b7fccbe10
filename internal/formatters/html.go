package formatters

import (
	"bytes"
	"html/template"
	"time"

	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/models"
)

// HTMLFormatter renders a self-contained report page with a summary header
// and one table row per result. All device output is escaped by the
// template engine.
type HTMLFormatter struct{}

type htmlPage struct {
	GeneratedAt string
	Stats       *executor.ExecutionStats
	Duration    string
	Rows        []htmlRow
}

type htmlRow struct {
	Hostname   string
	Command    string
	Status     string
	Class      string
	Output     string
	Error      string
	DurationMS int64
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Network Command Execution Results</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 20px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
    th { background-color: #4CAF50; color: white; }
    tr:nth-child(even) { background-color: #f2f2f2; }
    .success { color: green; }
    .failed { color: red; }
    .timeout { color: orange; }
    pre { white-space: pre-wrap; word-wrap: break-word; margin: 0; }
  </style>
</head>
<body>
  <h1>Network Command Execution Results</h1>
  <p>Generated: {{.GeneratedAt}}</p>
{{- with .Stats}}
  <p>Devices: {{.TotalDevices}} total, {{.SuccessfulDevices}} succeeded, {{.FailedDevices}} failed.
     Commands: {{.TotalCommands}} total, {{.SuccessfulCommands}} succeeded, {{.FailedCommands}} failed.
     Elapsed: {{$.Duration}}.</p>
{{- end}}
  <table>
    <tr>
      <th>Hostname</th>
      <th>Command</th>
      <th>Status</th>
      <th>Output</th>
      <th>Error</th>
      <th>Duration (ms)</th>
    </tr>
{{- range .Rows}}
    <tr>
      <td>{{.Hostname}}</td>
      <td><code>{{.Command}}</code></td>
      <td class="{{.Class}}">{{.Status}}</td>
      <td><pre>{{.Output}}</pre></td>
      <td><pre>{{.Error}}</pre></td>
      <td>{{.DurationMS}}</td>
    </tr>
{{- end}}
  </table>
</body>
</html>
`))

func (HTMLFormatter) Format(results []models.ExecutionResult, stats *executor.ExecutionStats) ([]byte, error) {
	page := htmlPage{
		GeneratedAt: time.Now().UTC().Format("2006-01-02 15:04:05"),
		Stats:       stats,
		Rows:        make([]htmlRow, 0, len(results)),
	}
	if stats != nil {
		page.Duration = stats.Duration().Round(time.Millisecond).String()
	}
	for _, r := range results {
		page.Rows = append(page.Rows, htmlRow{
			Hostname:   r.Device.DisplayName(),
			Command:    r.Command.Text,
			Status:     string(r.Status),
			Class:      statusClass(r.Status),
			Output:     r.Output,
			Error:      r.Error,
			DurationMS: r.Duration.Milliseconds(),
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (HTMLFormatter) Extension() string {
	return "html"
}

func statusClass(status models.ExecutionStatus) string {
	switch status {
	case models.StatusSuccess:
		return "success"
	case models.StatusCmdTimeout, models.StatusConnTimeout:
		return "timeout"
	default:
		return "failed"
	}
}
