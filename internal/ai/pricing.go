package ai

// Pricing holds the provider's published per-million-token rates in USD.
// Cost is computed and stored at insert time so historical rate changes do
// not distort past ledger rows.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing matches the gemini-2.5-flash published rates.
var DefaultPricing = Pricing{
	InputPerMillion:  0.30,
	OutputPerMillion: 2.50,
}

// Cost returns the USD cost of a single call.
func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1e6*p.InputPerMillion +
		float64(outputTokens)/1e6*p.OutputPerMillion
}
