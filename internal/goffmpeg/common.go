package goffmpeg

import (
	"reflect"
	"strconv"
	"strings"
)

// Printer is something that printfs (used for debug logging)
type Printer interface {
	Printf(format string, v ...interface{})
}

// NopPrinter is discard printfer
type NopPrinter struct{}

// Printf nop
func (NopPrinter) Printf(format string, v ...interface{}) {}

// Metadata from libavformat/avformat.h, subset used when writing.
// json tag is used for metadata key name also
type Metadata struct {
	Comment      string `json:"comment"`       // any additional description of the file.
	CreationTime string `json:"creation_time"` // date when the file was created, preferably in ISO 8601.
	Encoder      string `json:"encoder"`       // name/settings of the software/hardware that produced the file.
	Language     string `json:"language"`
	Title        string `json:"title"` // name of the work.
}

// ToMap convert to a key value string map
func (m Metadata) ToMap() map[string]string {
	kv := map[string]string{}
	t := reflect.TypeOf(m)
	v := reflect.ValueOf(m)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i).String()
		if value == "" {
			continue
		}

		// json tag is used for metadata key name
		key := field.Tag.Get("json")
		kv[key] = value
	}

	return kv
}

// ParseRational parses ffprobe rationals like "30000/1001" or "25".
// Returns ok false for "0/0", empty or malformed values.
func ParseRational(s string) (float64, bool) {
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	den := 1.0
	if len(parts) == 2 {
		den, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, false
		}
	}
	if den == 0 || num <= 0 {
		return 0, false
	}
	return num / den, true
}
