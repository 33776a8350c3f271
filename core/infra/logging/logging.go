// Package logging provides the key/value log helpers used across the
// gateway, plus the audit trail for deploy decisions.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

const envLogFormat = "JARVAULT_LOG_FORMAT"

var (
	logFormatOnce sync.Once
	logAsJSON     bool
)

func jsonEnabled() bool {
	logFormatOnce.Do(func() {
		logAsJSON = strings.EqualFold(strings.TrimSpace(os.Getenv(envLogFormat)), "json")
	})
	return logAsJSON
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...interface{}) {
	emit("INFO", component, msg, kv...)
}

// Error logs an error message with key/value fields.
func Error(component, msg string, kv ...interface{}) {
	emit("ERROR", component, msg, kv...)
}

// Audit records a user-attributed event. Audit lines always carry the
// user and action keys so rejected deploys can be traced back.
func Audit(user, action string, kv ...interface{}) {
	fields := append([]interface{}{"user", user, "action", action}, kv...)
	emit("AUDIT", "audit", action, fields...)
}

func emit(level, component, msg string, kv ...interface{}) {
	if jsonEnabled() {
		payload := map[string]any{
			"level":     level,
			"component": component,
			"msg":       msg,
		}
		if len(kv)%2 != 0 {
			kv = append(kv, "(missing)")
		}
		for i := 0; i < len(kv); i += 2 {
			payload[toString(kv[i])] = kv[i+1]
		}
		line, err := json.Marshal(payload)
		if err == nil {
			log.Print(string(line))
			return
		}
	}
	prefix := ""
	if level == "ERROR" || level == "AUDIT" {
		prefix = level + " "
	}
	log.Printf("[%s] %s%s%s", strings.ToUpper(component), prefix, msg, formatFields(kv...))
}

func formatFields(kv ...interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	b.WriteString(" ")
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return strings.TrimSpace(strings.ReplaceAll(fmt.Sprintf("%v", t), "\n", " "))
	}
}
