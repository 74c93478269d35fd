package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Fields printed first and highlighted, in this order
var priorityFields = []string{"run_id", "terms", "pass", "page", "tweet_id", "error"}

// ColoredJSONFormatter prints one line per entry: timestamp, level,
// message, then key=value fields with JSON-encoded values
type ColoredJSONFormatter struct {
	TimestampFormat string
	// SortingFunc orders field keys; nil sorts alphabetically
	SortingFunc func([]string) []string
	// DisableColors strips escape codes, for output that is not a terminal
	DisableColors bool
}

func NewColoredJSONFormatter() *ColoredJSONFormatter {
	return &ColoredJSONFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     sortByPriority,
	}
}

func (f *ColoredJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	levelColor := f.paint(colorForLevel(entry.Level))
	timeColor := f.paint(color.New(color.FgYellow))
	keyColor := f.paint(color.New(color.FgCyan))
	importantColor := f.paint(color.New(color.FgGreen))
	valueColor := f.paint(color.New(color.FgWhite))

	fmt.Fprintf(b, "%s %s %s",
		timeColor.Sprint(entry.Time.Format(f.TimestampFormat)),
		levelColor.Sprintf("%-7s", strings.ToUpper(entry.Level.String())),
		levelColor.Sprint(entry.Message),
	)

	for _, k := range keys {
		kc := keyColor
		if isImportantField(k) {
			kc = importantColor
		}
		b.WriteByte(' ')
		b.WriteString(kc.Sprintf("%s=", k))
		b.WriteString(valueColor.Sprint(formatValue(entry.Data[k])))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *ColoredJSONFormatter) paint(c *color.Color) *color.Color {
	if f.DisableColors {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

func colorForLevel(level logrus.Level) *color.Color {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return color.New(color.FgBlue)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	case logrus.ErrorLevel:
		return color.New(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

func isImportantField(field string) bool {
	return priority(field) > 0
}

func priority(field string) int {
	for i, f := range priorityFields {
		if f == field {
			return i + 1
		}
	}
	return 0
}

func sortByPriority(keys []string) []string {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority(keys[i]), priority(keys[j])
		switch {
		case pi != 0 && pj != 0:
			return pi < pj
		case pi != 0:
			return true
		case pj != 0:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
