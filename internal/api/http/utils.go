package http

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

// parseFilter reads ?severity= and ?last=. It writes a 400 and returns
// false when either is invalid.
func parseFilter(c *gin.Context) (reporting.Filter, bool) {
	var f reporting.Filter
	if raw := c.Query("severity"); raw != "" {
		sev, err := reporting.ParseSeverity(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return f, false
		}
		f.Severity = &sev
	}
	if raw := c.Query("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "last must be a non-negative integer"})
			return f, false
		}
		f.Last = n
	}
	return f, true
}

func contentType(format reporting.Format) string {
	switch format {
	case reporting.FormatJSON:
		return "application/json; charset=utf-8"
	case reporting.FormatYAML:
		return "application/yaml; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// allBreakers collects the format breakers with the ones owned by the
// fallback manager and the orchestrator.
func (h *Handlers) allBreakers() map[string]*resilience.Breaker {
	all := make(map[string]*resilience.Breaker)
	if h.breakers != nil {
		for _, name := range h.breakers.Names() {
			if b, ok := h.breakers.Lookup(name); ok {
				all[name] = b
			}
		}
	}
	if h.fallback != nil {
		b := h.fallback.Breaker()
		all[b.Name()] = b
	}
	if h.recovery != nil {
		b := h.recovery.Breaker()
		all[b.Name()] = b
	}
	return all
}

func sortedNames(m map[string]*resilience.Breaker) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
