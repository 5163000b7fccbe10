// Package formatters renders finished result collections into report
// documents. Formatters are stateless; the same instance may be reused
// across batches.
package formatters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netsweep/netsweep/internal/executor"
	"github.com/netsweep/netsweep/internal/models"
)

// Formatter renders execution results into one output document. The stats
// argument may be nil when no batch summary is available.
type Formatter interface {
	Format(results []models.ExecutionResult, stats *executor.ExecutionStats) ([]byte, error)
	Extension() string
}

var registry = map[string]Formatter{
	"csv":  CSVFormatter{},
	"json": JSONFormatter{},
	"yaml": YAMLFormatter{},
	"html": HTMLFormatter{},
}

// ForName returns the formatter registered under the given name. The
// lookup is case-insensitive.
func ForName(name string) (Formatter, error) {
	formatter, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q, valid formats: %s", name, strings.Join(Names(), ", "))
	}
	return formatter, nil
}

// Names returns the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
