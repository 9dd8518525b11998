package reportconfig

// Config is the reconciliation run definition
// ⭐ SSOT: 리포트 비교 설정은 이 구조체로만 전달
type Config struct {
	ColsToCheck   []string `yaml:"cols_to_check" json:"cols_to_check" validate:"required,min=1,unique,dive,sqlident"`
	MarginClasses []string `yaml:"margin_classes" json:"margin_classes" validate:"required,min=1,unique,dive,required"`
	Reports       []Report `yaml:"reports" json:"reports" validate:"required,min=1,unique=Name,dive"`
	Pairs         []Pair   `yaml:"pairs" json:"pairs" validate:"dive"`
}

// Report is one report definition. Date and TimeOfDay may hold
// {{last_day}}-style placeholders until Resolve is called.
type Report struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Table       string `yaml:"table" json:"table" validate:"required,sqlident"`
	Date        string `yaml:"date" json:"date" validate:"required,datetime=2006-01-02"`
	TimeOfDay   string `yaml:"time_of_day,omitempty" json:"time_of_day,omitempty" validate:"omitempty,datetime=15:04:05"`
	ValidReport *bool  `yaml:"valid_report" json:"valid_report" validate:"required"`
}

// IsValid reports the valid_report flag
func (r Report) IsValid() bool {
	return r.ValidReport != nil && *r.ValidReport
}

// Pair names two reports to compare, left against right
type Pair struct {
	Left  string `yaml:"left" json:"left" validate:"required"`
	Right string `yaml:"right" json:"right" validate:"required,nefield=Left"`
}

// DefaultPairs compares the end-of-day margin call with the first and
// last intraday snapshots
var DefaultPairs = []Pair{
	{Left: "cc050_eod_report", Right: "ci050_first_report"},
	{Left: "cc050_eod_report", Right: "ci050_last_report"},
}

// Report returns the definition named name
func (c *Config) Report(name string) (Report, bool) {
	for _, r := range c.Reports {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

// ReportNames returns report names in configured order
func (c *Config) ReportNames() []string {
	names := make([]string, 0, len(c.Reports))
	for _, r := range c.Reports {
		names = append(names, r.Name)
	}
	return names
}

// Tables returns the distinct tables referenced, in first-seen order
func (c *Config) Tables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, r := range c.Reports {
		if !seen[r.Table] {
			seen[r.Table] = true
			tables = append(tables, r.Table)
		}
	}
	return tables
}

// ComparePairs returns the configured pairs, or DefaultPairs when none
// are configured
func (c *Config) ComparePairs() []Pair {
	if len(c.Pairs) > 0 {
		return c.Pairs
	}
	return DefaultPairs
}
