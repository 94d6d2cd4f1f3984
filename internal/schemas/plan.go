package schemas

// Job is one entry in an ExecutionPlan layer. It carries enough of the
// producer graph node for the runner to execute it without re-consulting
// the full producer graph.
type Job struct {
	JobID    string   `json:"jobId"`
	Producer string   `json:"producer"`
	Inputs   []string `json:"inputs"`
	Produces []string `json:"produces"`

	Provider      string `json:"provider"`
	ProviderModel string `json:"providerModel"`
	RateKey       string `json:"rateKey"`

	Context JobContext `json:"context"`
}

// ExecutionPlan is the topologically layered set of dirty jobs for one
// revision (spec.md §3.7).
type ExecutionPlan struct {
	Revision         string   `json:"revision"`
	ManifestBaseHash *string  `json:"manifestBaseHash"`
	Layers           [][]Job  `json:"layers"`
	CreatedAt        string   `json:"createdAt"`
}

// IsEmpty reports whether every layer of the plan is empty.
func (p *ExecutionPlan) IsEmpty() bool {
	for _, layer := range p.Layers {
		if len(layer) > 0 {
			return false
		}
	}
	return true
}
