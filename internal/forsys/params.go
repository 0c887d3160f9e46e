package forsys

import "fmt"

// Params are the caller-supplied settings for one transformation.
type Params struct {
	// Priorities in the order the engine was run with. The order determines
	// the expected weight column names and the scenario key layout.
	Priorities []string `json:"priorities" yaml:"priorities"`

	ProjectIDField string `json:"project_id_field" yaml:"project_id_field"`
	AreaField      string `json:"area_field" yaml:"area_field"`
	CostField      string `json:"cost_field" yaml:"cost_field"`

	// Nil means no ceiling.
	MaxArea *float64 `json:"max_area,omitempty" yaml:"max_area,omitempty"`
	MaxCost *float64 `json:"max_cost,omitempty" yaml:"max_cost,omitempty"`

	// Workers bounds how many scenarios are scored concurrently. Values
	// below 1 mean sequential.
	Workers int `json:"-" yaml:"-"`
}

// Validate checks the parameters independent of any table.
func (p Params) Validate() error {
	if len(p.Priorities) == 0 {
		return fmt.Errorf("%w: at least one priority is required", ErrInvalidParams)
	}
	seen := make(map[string]bool, len(p.Priorities))
	for _, name := range p.Priorities {
		if name == "" {
			return fmt.Errorf("%w: empty priority name", ErrInvalidParams)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate priority %q", ErrInvalidParams, name)
		}
		seen[name] = true
	}
	if p.ProjectIDField == "" {
		return fmt.Errorf("%w: project id field is required", ErrInvalidParams)
	}
	if p.AreaField == "" {
		return fmt.Errorf("%w: area field is required", ErrInvalidParams)
	}
	if p.CostField == "" {
		return fmt.Errorf("%w: cost field is required", ErrInvalidParams)
	}
	if p.MaxArea != nil && *p.MaxArea < 0 {
		return fmt.Errorf("%w: max area must not be negative", ErrInvalidParams)
	}
	if p.MaxCost != nil && *p.MaxCost < 0 {
		return fmt.Errorf("%w: max cost must not be negative", ErrInvalidParams)
	}
	return nil
}
