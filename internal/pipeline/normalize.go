package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/campus-cli/internal/fault"
	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/task"
)

// Policy names the normalization rule that produced the final records.
type Policy string

const (
	PolicyPassthrough Policy = "passthrough"
	PolicyTotalRows   Policy = "total_rows"
	PolicyAggregated  Policy = "aggregated"
	PolicyNone        Policy = "none"
)

const (
	// AverageAnnualCostLabel labels the synthetic aggregated record.
	AverageAnnualCostLabel = "Average Annual Cost"
	// NoValidDataLabel labels the row written when no cost could be derived.
	NoValidDataLabel = "No valid cost values found"
)

var (
	yearRe = regexp.MustCompile(`20\d{2}`)

	totalKeywords = []string{"total", "cost of attendance", "net price", "average annual cost"}
	itemKeywords  = []string{"tuition", "housing", "meals", "food", "books", "supplies", "personal", "misc", "room", "board"}
)

// NormalizeReport records how the final records were chosen. Skipped lists
// aggregation inputs whose values were not numeric.
type NormalizeReport struct {
	Policy  Policy
	Skipped []string
}

// Normalize applies the task's selection policy. Program records pass
// through. Cost records prefer total rows (newest year first); without any,
// itemized costs are summed into one synthetic record. A NoValidData fault
// is returned when nothing could be summed.
func Normalize(kind task.Kind, records []model.Record) ([]model.Record, NormalizeReport, error) {
	if kind != task.KindCosts {
		return records, NormalizeReport{Policy: PolicyPassthrough}, nil
	}

	fold := cases.Fold()

	var totals []model.Record
	for _, r := range records {
		if containsAny(fold.String(r.Label), totalKeywords) {
			totals = append(totals, r)
		}
	}
	if len(totals) > 0 {
		sort.SliceStable(totals, func(i, j int) bool {
			return yearKey(totals[i].Year) > yearKey(totals[j].Year)
		})
		return totals, NormalizeReport{Policy: PolicyTotalRows}, nil
	}

	report := NormalizeReport{Policy: PolicyNone}
	var (
		sum     float64
		numeric int
	)
	for _, r := range records {
		if !containsAny(fold.String(r.Label), itemKeywords) {
			continue
		}
		v, ok := ParseAmount(r.Value)
		if !ok {
			report.Skipped = append(report.Skipped, fmt.Sprintf("%s: %q is not numeric", r.Label, r.Value))
			continue
		}
		sum += v
		numeric++
	}

	if numeric == 0 || sum <= 0 {
		return nil, report, fault.New(fault.NoValidData, "no valid cost values found")
	}

	report.Policy = PolicyAggregated
	return []model.Record{{
		Label: AverageAnnualCostLabel,
		Value: FormatUSD(sum),
	}}, report, nil
}

// yearKey extracts the first 20xx year, or 0.
func yearKey(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

// ParseAmount coerces "$12,000", "12000" or "12000.50" to a number.
func ParseAmount(s string) (float64, bool) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatUSD renders an amount as "$15,000.00".
func FormatUSD(v float64) string {
	return message.NewPrinter(language.English).Sprintf("$%.2f", v)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
