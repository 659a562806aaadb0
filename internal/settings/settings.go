// Package settings manages the dashboard's user settings: the typed view of
// the settings document, the merge of stored values over defaults, and the
// cache that publishes the merged result.
package settings

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Notify levels.
const (
	NotifyLevelWarn = 1
	NotifyLevelFail = 2
)

// Attribute filters for device status.
const (
	StatusFilterAll      = 0
	StatusFilterCritical = 1
)

// Thresholds used to decide device status.
const (
	StatusThresholdSmart    = 1
	StatusThresholdScrutiny = 2
	StatusThresholdBoth     = 3
)

type CollectorSettings struct {
	RetrieveSCTHistory bool `mapstructure:"retrieve_sct_temperature_history" json:"retrieve_sct_temperature_history"`
}

type MetricsSettings struct {
	NotifyLevel            int  `mapstructure:"notify_level" json:"notify_level"`
	StatusFilterAttributes int  `mapstructure:"status_filter_attributes" json:"status_filter_attributes"`
	StatusThreshold        int  `mapstructure:"status_threshold" json:"status_threshold"`
	RepeatNotifications    bool `mapstructure:"repeat_notifications" json:"repeat_notifications"`

	NotifyOnMissedPing          bool `mapstructure:"notify_on_missed_ping" json:"notify_on_missed_ping"`
	MissedPingTimeoutMinutes    int  `mapstructure:"missed_ping_timeout_minutes" json:"missed_ping_timeout_minutes"`
	MissedPingCheckIntervalMins int  `mapstructure:"missed_ping_check_interval_mins" json:"missed_ping_check_interval_mins"`

	HeartbeatEnabled       bool `mapstructure:"heartbeat_enabled" json:"heartbeat_enabled"`
	HeartbeatIntervalHours int  `mapstructure:"heartbeat_interval_hours" json:"heartbeat_interval_hours"`

	ReportEnabled        bool   `mapstructure:"report_enabled" json:"report_enabled"`
	ReportDailyEnabled   bool   `mapstructure:"report_daily_enabled" json:"report_daily_enabled"`
	ReportDailyTime      string `mapstructure:"report_daily_time" json:"report_daily_time"`
	ReportWeeklyEnabled  bool   `mapstructure:"report_weekly_enabled" json:"report_weekly_enabled"`
	ReportWeeklyDay      int    `mapstructure:"report_weekly_day" json:"report_weekly_day"`
	ReportWeeklyTime     string `mapstructure:"report_weekly_time" json:"report_weekly_time"`
	ReportMonthlyEnabled bool   `mapstructure:"report_monthly_enabled" json:"report_monthly_enabled"`
	ReportMonthlyDay     int    `mapstructure:"report_monthly_day" json:"report_monthly_day"`
	ReportMonthlyTime    string `mapstructure:"report_monthly_time" json:"report_monthly_time"`
	ReportPDFEnabled     bool   `mapstructure:"report_pdf_enabled" json:"report_pdf_enabled"`
	ReportPDFPath        string `mapstructure:"report_pdf_path" json:"report_pdf_path"`
}

// Settings is the typed form of a merged settings tree.
type Settings struct {
	Theme              string `mapstructure:"theme" json:"theme"`
	Layout             string `mapstructure:"layout" json:"layout"`
	DashboardDisplay   string `mapstructure:"dashboard_display" json:"dashboard_display"`
	DashboardSort      string `mapstructure:"dashboard_sort" json:"dashboard_sort"`
	TemperatureUnit    string `mapstructure:"temperature_unit" json:"temperature_unit"`
	FileSizeSIUnits    bool   `mapstructure:"file_size_si_units" json:"file_size_si_units"`
	PoweredOnHoursUnit string `mapstructure:"powered_on_hours_unit" json:"powered_on_hours_unit"`
	LineStroke         string `mapstructure:"line_stroke" json:"line_stroke"`

	Collector CollectorSettings `mapstructure:"collector" json:"collector"`
	Metrics   MetricsSettings   `mapstructure:"metrics" json:"metrics"`
}

// Defaults returns a fresh copy of the complete default settings tree.
func Defaults() Tree {
	return Tree{
		"theme":                 "light",
		"layout":                "material",
		"dashboard_display":     "name",
		"dashboard_sort":        "status",
		"temperature_unit":      "celsius",
		"file_size_si_units":    false,
		"powered_on_hours_unit": "humanize",
		"line_stroke":           "smooth",
		"collector": Tree{
			"retrieve_sct_temperature_history": true,
		},
		"metrics": Tree{
			"notify_level":                    NotifyLevelFail,
			"status_filter_attributes":        StatusFilterAll,
			"status_threshold":                StatusThresholdBoth,
			"repeat_notifications":            true,
			"notify_on_missed_ping":           false,
			"missed_ping_timeout_minutes":     60,
			"missed_ping_check_interval_mins": 5,
			"heartbeat_enabled":               false,
			"heartbeat_interval_hours":        24,
			"report_enabled":                  false,
			"report_daily_enabled":            false,
			"report_daily_time":               "08:00",
			"report_weekly_enabled":           false,
			"report_weekly_day":               1,
			"report_weekly_time":              "08:00",
			"report_monthly_enabled":          false,
			"report_monthly_day":              1,
			"report_monthly_time":             "08:00",
			"report_pdf_enabled":              false,
			"report_pdf_path":                 "",
		},
	}
}

// Decode converts a settings tree into Settings. Numbers given as floats
// (JSON) or strings (form posts) are converted; keys Settings does not know
// are ignored.
func Decode(t Tree) (*Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("settings decoder: %w", err)
	}
	if err := dec.Decode(t); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

// Tree encodes s back into a settings tree.
func (s *Settings) Tree() (Tree, error) {
	out := Tree{}
	if err := mapstructure.Decode(s, &out); err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return out, nil
}
