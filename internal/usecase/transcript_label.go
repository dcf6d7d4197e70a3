package usecase

import (
	"regexp"
	"strings"
	"time"
)

// LabelFormat selects how a transcript timestamp is rendered.
type LabelFormat string

const (
	LabelFormatTime     LabelFormat = "time"
	LabelFormatDateTime LabelFormat = "datetime"
)

var stampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

// transcriptLabel derives the display label from a YYYYMMDD_HHMMSS token in the base name.
// Without a valid token the base name itself is the label.
func transcriptLabel(path string, format LabelFormat) string {
	base := baseName(path)
	match := stampPattern.FindStringSubmatch(base)
	if match == nil {
		return base
	}

	stamp, err := time.Parse("20060102_150405", match[1]+"_"+match[2])
	if err != nil {
		return base
	}
	if format == LabelFormatDateTime {
		return stamp.Format("2006-01-02 15:04:05")
	}
	return stamp.Format("15:04:05")
}

// baseName accepts both slash styles since handles may come from another OS.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
