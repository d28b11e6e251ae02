package domain

// Record is a catalog entry consumed by lookup, scoring and order tasks.
// The core never persists these; they come and go through the data-access
// contract.
type Record struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Category string  `json:"category" yaml:"category"`
	CPU      int     `json:"cpu" yaml:"cpu"`
	RAM      int     `json:"ram" yaml:"ram"`
	Storage  int     `json:"storage" yaml:"storage"`
	Price    float64 `json:"price" yaml:"price"`
	Stock    int     `json:"stock" yaml:"stock"`
}
