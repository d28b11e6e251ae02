package runtime

import "fmt"

// Requirements are the normalized, clamped constraints a turn works with.
type Requirements struct {
	Category   string  `mapstructure:"category"`
	MinCPU     int     `mapstructure:"min_cpu"`
	MinRAM     int     `mapstructure:"min_ram"`
	MinStorage int     `mapstructure:"min_storage"`
	MaxPrice   float64 `mapstructure:"max_price"`
	Priority   string  `mapstructure:"priority"`
	RecordID   string  `mapstructure:"record_id"`
	Quantity   int     `mapstructure:"quantity"`
}

// Floors and defaults for requirement normalization.
const (
	defaultMinCPU     = 4
	defaultMinRAM     = 16
	defaultMinStorage = 500
	defaultMaxPrice   = 2000
	defaultPriority   = "balanced"

	floorCPU     = 1
	floorRAM     = 4
	floorStorage = 100
)

// decodeRequirements turns a loosely-typed constraint map into Requirements.
// Resolver output and caller-supplied context both pass through JSON at some
// point, so numbers may arrive as float64, int, or even strings; weak
// decoding absorbs that.
func decodeRequirements(constraints map[string]any) (Requirements, error) {
	var reqs Requirements
	if err := weakDecode(constraints, &reqs); err != nil {
		return reqs, fmt.Errorf("failed to decode constraints: %w", err)
	}
	return reqs, nil
}

// normalizeRequirements fills defaults for absent fields and clamps values
// below their floors, reporting each adjustment as a non-fatal warning.
func normalizeRequirements(constraints map[string]any) (Requirements, []string, error) {
	reqs, err := decodeRequirements(constraints)
	if err != nil {
		return Requirements{}, nil, err
	}

	var warnings []string

	if reqs.MinCPU == 0 {
		reqs.MinCPU = defaultMinCPU
	}
	if reqs.MinRAM == 0 {
		reqs.MinRAM = defaultMinRAM
	}
	if reqs.MinStorage == 0 {
		reqs.MinStorage = defaultMinStorage
	}
	if reqs.MaxPrice == 0 {
		reqs.MaxPrice = defaultMaxPrice
	}
	if reqs.Priority == "" {
		reqs.Priority = defaultPriority
	}

	if reqs.MinCPU < floorCPU {
		warnings = append(warnings, fmt.Sprintf("cpu requirement raised to the minimum of %d", floorCPU))
		reqs.MinCPU = floorCPU
	}
	if reqs.MinRAM < floorRAM {
		warnings = append(warnings, fmt.Sprintf("ram requirement raised to the minimum of %dGB", floorRAM))
		reqs.MinRAM = floorRAM
	}
	if reqs.MinStorage < floorStorage {
		warnings = append(warnings, fmt.Sprintf("storage requirement raised to the minimum of %dGB", floorStorage))
		reqs.MinStorage = floorStorage
	}
	if reqs.MaxPrice < 0 {
		warnings = append(warnings, "negative budget ignored")
		reqs.MaxPrice = defaultMaxPrice
	}

	return reqs, warnings, nil
}
