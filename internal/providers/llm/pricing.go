package llm

import (
	"strings"
)

// Price is USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// pricing is matched by longest model-name prefix. Vendor prefixes such as
// "openai/" are stripped before lookup.
var pricing = map[string]Price{
	"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
	"gpt-4o":            {Input: 2.50, Output: 10.00},
	"gpt-4.1-nano":      {Input: 0.10, Output: 0.40},
	"gpt-4.1-mini":      {Input: 0.40, Output: 1.60},
	"gpt-4.1":           {Input: 2.00, Output: 8.00},
	"gpt-3.5-turbo":     {Input: 0.50, Output: 1.50},
	"o3-mini":           {Input: 1.10, Output: 4.40},
	"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
	"claude-3-haiku":    {Input: 0.25, Output: 1.25},
	"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
	"claude-3-7-sonnet": {Input: 3.00, Output: 15.00},
	"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
	"claude-opus-4":     {Input: 15.00, Output: 75.00},
	"gemini-2.0-flash":  {Input: 0.10, Output: 0.40},
	"gemini-2.5-flash":  {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":    {Input: 1.25, Output: 10.00},
	"gemini-1.5-flash":  {Input: 0.075, Output: 0.30},
}

// LookupPrice finds the longest matching prefix. Free and local models
// report ok=false.
func LookupPrice(model string) (Price, bool) {
	name := strings.ToLower(model)
	if strings.HasSuffix(name, ":free") {
		return Price{}, false
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var (
		best    Price
		bestLen int
	)
	for prefix, price := range pricing {
		if strings.HasPrefix(name, prefix) && len(prefix) > bestLen {
			best, bestLen = price, len(prefix)
		}
	}
	return best, bestLen > 0
}

// EstimateCost returns the USD cost of a call, zero for unknown models.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := LookupPrice(model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)*price.Input + float64(outputTokens)*price.Output) / 1_000_000
}
