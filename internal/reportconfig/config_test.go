package reportconfig

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/window"
)

var testDates = window.Dates{
	LastDay:      "2020-05-11",
	CurrentDay:   "2020-05-12",
	MaxTimeOfDay: "19:00:00",
	MinTimeOfDay: "08:00:00",
}

func boolPtr(b bool) *bool { return &b }

func validConfig() *Config {
	return &Config{
		ColsToCheck:   []string{"clearing_member", "account", "margin_type", "margin"},
		MarginClasses: []string{"SPAN", "IMSM"},
		Reports: []Report{
			{Name: "cc050_eod_report", Table: "cc050", Date: "2020-05-11", ValidReport: boolPtr(true)},
			{Name: "ci050_last_report", Table: "ci050", Date: "2020-05-11", TimeOfDay: "19:00:00", ValidReport: boolPtr(true)},
			{Name: "ci050_first_report", Table: "ci050", Date: "2020-05-12", TimeOfDay: "08:00:00", ValidReport: boolPtr(true)},
		},
	}
}

func TestLoad(t *testing.T) {
	path := "../../config/reports.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, err := Load(path, testDates)
	require.NoError(t, err)

	assert.Equal(t, []string{"clearing_member", "account", "margin_type", "margin"}, cfg.ColsToCheck)
	assert.Len(t, cfg.MarginClasses, 9)
	assert.Equal(t, "SPAN", cfg.MarginClasses[0])

	eod, ok := cfg.Report("cc050_eod_report")
	require.True(t, ok)
	assert.Equal(t, "2020-05-11", eod.Date)
	assert.Empty(t, eod.TimeOfDay)

	first, _ := cfg.Report("ci050_first_report")
	assert.Equal(t, "2020-05-12", first.Date)
	assert.Equal(t, "08:00:00", first.TimeOfDay)

	last, _ := cfg.Report("ci050_last_report")
	assert.Equal(t, "19:00:00", last.TimeOfDay)

	assert.Equal(t, DefaultPairs, cfg.ComparePairs())
	assert.Equal(t, []string{"cc050", "ci050"}, cfg.Tables())
	assert.Empty(t, Warn(cfg))
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	data := []byte(`
cols_to_check: [account]
margin_classes: [SPAN]
reports:
  - name: a
    table: cc050
    date: "2020-05-11"
    valid_report: true
    colour: red
`)
	_, err := Parse(data, testDates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfigValidation))
}

func TestParse_WrongShape(t *testing.T) {
	data := []byte(`
cols_to_check: account
margin_classes: [SPAN]
reports: []
`)
	_, err := Parse(data, testDates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfigValidation))
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.MarginClasses = []string{"SPAN", "SPAN"}
	cfg.Reports[0].Date = "11/05/2020"
	cfg.Reports[1].TimeOfDay = "7pm"
	cfg.Reports[2].Table = "ci050; drop"
	cfg.Reports[2].ValidReport = nil

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfigValidation))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"margin_classes",
		"reports[0].date",
		"reports[1].time_of_day",
		"reports[2].table",
		"reports[2].valid_report",
	}, fields)
}

func TestValidate_DuplicateReportNames(t *testing.T) {
	cfg := validConfig()
	cfg.Reports[1].Name = cfg.Reports[0].Name
	cfg.Pairs = []Pair{{Left: "cc050_eod_report", Right: "ci050_first_report"}}

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reports: must not contain duplicates")
}

func TestValidate_UnresolvedPlaceholder(t *testing.T) {
	cfg := validConfig()
	cfg.Reports[0].Date = "{{yesterday}}"
	cfg.Resolve(testDates)

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reports[0].date")
}

func TestValidate_Pairs(t *testing.T) {
	cfg := validConfig()
	cfg.Pairs = []Pair{
		{Left: "cc050_eod_report", Right: "cc050_eod_report"},
		{Left: "cc050_eod_report", Right: "ci050_noon_report"},
	}

	err := Validate(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "pairs[0].right: must differ from left")
	assert.Contains(t, err.Error(), `pairs[1].right: unknown report "ci050_noon_report"`)
}

func TestResolve(t *testing.T) {
	cfg := &Config{Reports: []Report{
		{Date: "{{last_day}}", TimeOfDay: "{{max_time_of_day}}"},
		{Date: "{{current_day}}", TimeOfDay: "{{min_time_of_day}}"},
		{Date: "2021-01-04"},
	}}
	cfg.Resolve(testDates)

	assert.Equal(t, "2020-05-11", cfg.Reports[0].Date)
	assert.Equal(t, "19:00:00", cfg.Reports[0].TimeOfDay)
	assert.Equal(t, "2020-05-12", cfg.Reports[1].Date)
	assert.Equal(t, "08:00:00", cfg.Reports[1].TimeOfDay)
	assert.Equal(t, "2021-01-04", cfg.Reports[2].Date)
}

func TestWarn(t *testing.T) {
	cfg := validConfig()
	cfg.MarginClasses = append(cfg.MarginClasses, "span")
	cfg.Reports[2].ValidReport = boolPtr(false)
	cfg.Reports = append(cfg.Reports, Report{Name: "extra", Table: "cc050", Date: "2020-05-11", ValidReport: boolPtr(true)})

	codes := make(map[string]int)
	for _, w := range Warn(cfg) {
		codes[w.Code]++
	}

	assert.Equal(t, 1, codes["INVALID_REPORT_PAIRED"])
	assert.Equal(t, 1, codes["LOWERCASE_MARGIN_CLASS"])
	assert.Equal(t, 1, codes["UNPAIRED_REPORT"])
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(validConfig())
	require.NoError(t, err)
	h2, _ := Hash(validConfig())

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	changed := validConfig()
	changed.MarginClasses = []string{"IMSM", "SPAN"}
	h3, _ := Hash(changed)
	assert.NotEqual(t, h1, h3)
}
