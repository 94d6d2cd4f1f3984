package schemas

// JobContext carries the expanded, human-readable coordinates of a single
// producer instance (spec.md §3.4).
type JobContext struct {
	NamespacePath string           `json:"namespacePath"`
	Indices       map[string]int   `json:"indices"`
	QualifiedName string           `json:"qualifiedName"`
	InputBindings map[string]string `json:"inputBindings"`
}

// ProducerGraphNode is one concrete, dimension-instantiated producer
// invocation (spec.md §3.4).
type ProducerGraphNode struct {
	JobID    string   `json:"jobId"`
	Producer string   `json:"producer"`
	Inputs   []string `json:"inputs"`
	Produces []string `json:"produces"`

	Provider      string `json:"provider"`
	ProviderModel string `json:"providerModel"`
	RateKey       string `json:"rateKey"`

	Context JobContext `json:"context"`
}

// ProducerGraphEdge is a job-to-job dependency edge in the expanded
// producer graph.
type ProducerGraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProducerGraph is the fully concrete, expanded DAG of producer jobs
// ready for planning (spec.md §3.4).
type ProducerGraph struct {
	Nodes []*ProducerGraphNode `json:"nodes"`
	Edges []*ProducerGraphEdge `json:"edges"`
}
