package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

type Message struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

type Messages []Message

func Info(format string, args ...any) Messages {
	return Messages{{Severity: SeverityInfo, Text: fmt.Sprintf(format, args...)}}
}

func Warning(format string, args ...any) Messages {
	return Messages{{Severity: SeverityWarning, Text: fmt.Sprintf(format, args...)}}
}

// Error builds an error message; a non-nil err is appended on its own line.
func Error(err error, format string, args ...any) Messages {
	text := fmt.Sprintf(format, args...)
	if err != nil {
		text += "\n" + err.Error()
	}

	return Messages{{Severity: SeverityError, Text: text}}
}

func (ms Messages) IsSuccess() bool {
	for _, m := range ms {
		if m.Severity == SeverityError {
			return false
		}
	}

	return true
}

func (ms Messages) String() string {
	var sb strings.Builder
	for _, m := range ms {
		if m.Severity != SeverityInfo {
			sb.WriteString(string(m.Severity))
			sb.WriteString(": ")
		}
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
