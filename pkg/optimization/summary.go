// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures the savings-maximising prepo level found for one record.
type Summary struct {
	Record string `json:"record"`
	Index  int    `json:"index"`
	// Level is where net marginal savings cross zero, or a search bound
	// when they do not change sign inside it.
	Level      float64  `json:"level"`
	Savings    float64  `json:"savings"`
	Marginal   float64  `json:"marginal"`
	Iterations int      `json:"iterations"`
	Converged  bool     `json:"converged"`
	Notes      []string `json:"notes,omitempty"`
}
