// Package settings owns the monitoring agent's settings.ini: default creation,
// backup and restore around risky operations, and append-only key merging.
package settings

import (
	"github.com/cockroachdb/errors"
)

// CurrentSchema is the newest template revision shipped with this build.
const CurrentSchema = 4

// ErrUnknownSchema is returned for a template revision that does not exist.
var ErrUnknownSchema = errors.New("unknown settings schema")

// Entry is one KEY=VALUE default.
type Entry struct {
	Key   string
	Value string
}

// Template is an ordered default key set tagged with its schema revision.
type Template struct {
	Schema  int
	Entries []Entry
}

// Keys returns the template keys in order.
func (t Template) Keys() []string {
	keys := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		keys = append(keys, e.Key)
	}

	return keys
}

// Value returns the default for key.
func (t Template) Value(key string) (string, bool) {
	for _, e := range t.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}

	return "", false
}

// schemaAdditions lists the keys each revision added, oldest first.
var schemaAdditions = [CurrentSchema][]Entry{
	{
		{"TELEGRAM_TOKEN", ""},
		{"CHAT_ID", ""},
		{"VICTRON_API_URL", ""},
		{"API_KEY", ""},
		{"REFRESH_PERIOD", "5"},
		{"MAX_POWER", ""},
		{"PASSTHRU_CURRENT", ""},
		{"NOMINAL_VOLTAGE", "230"},
	},
	{
		{"QUIET_HOURS_START", ""},
		{"QUIET_HOURS_END", ""},
		{"TIMEZONE", "UTC"},
		{"LANGUAGE", "en"},
	},
	{
		{"QUIET_DAYS", ""},
		{"INSTALLATION_ID", ""},
		{"VOLTAGE_HIGH_THRESHOLD", "1.10"},
		{"VOLTAGE_LOW_THRESHOLD", "0.90"},
		{"BATTERY_LOW_SOC_THRESHOLD", "20"},
		{"BATTERY_CRITICAL_SOC_THRESHOLD", "10"},
	},
	{
		{"TUYA_ACCESS_ID", ""},
		{"TUYA_ACCESS_KEY", ""},
		{"TUYA_API_ENDPOINT", ""},
		{"TUYA_DEVICE_IDS", ""},
		{"SCHEDULE_ENABLED", ""},
		{"DTEK_TELEGRAM_API_ID", ""},
		{"DTEK_TELEGRAM_API_HASH", ""},
		{"DTEK_TELEGRAM_SESSION_NAME", "dtek_schedule_session"},
		{"DTEK_CHANNEL", "dtek_ua"},
		{"DTEK_QUEUE", "3.1"},
		{"REPLICATE_API_TOKEN", ""},
		{"SCHEDULE_REFRESH_MINUTES", "60"},
		{"PRE_OUTAGE_TUYA_OFF_MINUTES", "5"},
		{"LOG_LEVEL", "INFO"},
	},
}

// TemplateFor returns the cumulative template of the given schema revision.
func TemplateFor(schema int) (Template, error) {
	if schema < 1 || schema > CurrentSchema {
		return Template{}, errors.Wrapf(ErrUnknownSchema, "%d (known: 1..%d)", schema, CurrentSchema)
	}

	var entries []Entry
	for _, added := range schemaAdditions[:schema] {
		entries = append(entries, added...)
	}

	return Template{Schema: schema, Entries: entries}, nil
}

// Current returns the template of CurrentSchema.
func Current() Template {
	t, _ := TemplateFor(CurrentSchema)

	return t
}
