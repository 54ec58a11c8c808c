package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/sells-group/campus-cli/internal/fault"
	"github.com/sells-group/campus-cli/internal/model"
)

// Strategy names the parse path that produced the records.
type Strategy string

const (
	StrategyJSON    Strategy = "json"
	StrategyJSON5   Strategy = "json5"
	StrategyBullets Strategy = "bullets"
)

var (
	fenceRe  = regexp.MustCompile("```(json)?")
	arrayRe  = regexp.MustCompile(`(?s)\[.*?\]`)
	bulletRe = regexp.MustCompile(`- \*\*(.*?)\*\*: \$?([\d,]+)`)
)

// labelKeys are accepted as the record label, in priority order.
var labelKeys = []string{"label", "major", "program", "name"}

// ParseResult is the parser's output.
type ParseResult struct {
	Records  []model.Record
	Strategy Strategy
	// Dropped explains every array element that could not become a Record.
	Dropped []string
}

// Parse turns raw model text into records. The first strategy yielding a
// non-empty list wins: the first bracketed array (strict JSON, then JSON5),
// then bullet lines when allowBullets is set. Otherwise it fails with a
// Parse fault.
func Parse(raw string, allowBullets bool, defaultYear string) (ParseResult, error) {
	var res ParseResult

	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if arr := arrayRe.FindString(cleaned); arr != "" {
		var items []any
		strategy := StrategyJSON
		err := json.Unmarshal([]byte(arr), &items)
		if err != nil {
			strategy = StrategyJSON5
			items = nil
			err = json5.Unmarshal([]byte(pythonLiterals(arr)), &items)
		}
		if err == nil {
			res.Records, res.Dropped = coerceRecords(items)
			if len(res.Records) > 0 {
				res.Strategy = strategy
				return res, nil
			}
		}
	}

	if allowBullets {
		for _, m := range bulletRe.FindAllStringSubmatch(raw, -1) {
			res.Records = append(res.Records, model.Record{
				Label: strings.TrimSpace(m[1]),
				Value: "$" + m[2],
				Year:  defaultYear,
			})
		}
		if len(res.Records) > 0 {
			res.Strategy = StrategyBullets
			return res, nil
		}
	}

	return res, fault.New(fault.Parse, "no JSON list or bullet lines found in model output")
}

var pythonWords = map[string]string{"None": "null", "True": "true", "False": "false"}

// pythonLiterals rewrites bare None/True/False tokens to their JSON forms.
// Quoted strings and unquoted object keys are left alone.
func pythonLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			switch {
			case c == '\\' && i+1 < len(s):
				i++
				b.WriteByte(s[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			b.WriteByte(c)
			continue
		}
		if !isIdentByte(c) {
			b.WriteByte(c)
			continue
		}
		j := i
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		word := s[i:j]
		if repl, ok := pythonWords[word]; ok && !isKey(s[j:]) {
			word = repl
		}
		b.WriteString(word)
		i = j - 1
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isKey(rest string) bool {
	return strings.HasPrefix(strings.TrimLeft(rest, " \t\r\n"), ":")
}

// coerceRecords validates decoded array elements into the strict Record shape.
func coerceRecords(items []any) ([]model.Record, []string) {
	var (
		records []model.Record
		dropped []string
	)
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("item %d: not an object (%T)", i, item))
			continue
		}

		var rec model.Record
		for _, k := range labelKeys {
			if s, ok := scalarString(obj[k]); ok && s != "" {
				rec.Label = s
				break
			}
		}
		rec.Value, _ = scalarString(obj["value"])
		rec.Year, _ = scalarString(obj["year"])

		if rec.Label == "" && rec.Value == "" {
			dropped = append(dropped, fmt.Sprintf("item %d: no label or value", i))
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

// scalarString renders a decoded JSON scalar. Numbers are written without
// exponent.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
