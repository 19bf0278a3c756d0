// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedValue = "[REDACTED]"
	maxPatternLen = 200
)

// Secret creates a Zap field for config.Secret that only reveals its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a Zap field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// EnvVars logs a project's environment map with sensitive values redacted.
// Keys are kept so operators can see what is set.
func EnvVars(key string, env map[string]string, cfg RedactionConfig) zap.Field {
	return zap.Object(key, envMarshaler{env: env, fields: lowerAll(cfg.Fields)})
}

type envMarshaler struct {
	env    map[string]string
	fields []string
}

func (m envMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range m.env {
		if keyMatches(k, m.fields) {
			enc.AddString(k, "[REDACTED:"+strconv.Itoa(len(v))+"]")
			continue
		}
		enc.AddString(k, v)
	}
	return nil
}

// RedactingEncoder wraps a zapcore.Encoder to redact sensitive fields.
type RedactingEncoder struct {
	zapcore.Encoder
	fields      []string
	redactRegex []*regexp.Regexp
}

// NewRedactingEncoder wraps an encoder with redaction rules.
// Returns error if any redaction pattern fails to compile.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	var patterns []*regexp.Regexp
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{
		Encoder:     base,
		fields:      lowerAll(cfg.Fields),
		redactRegex: patterns,
	}, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// keyMatches reports whether any sensitive word occurs in key.
func keyMatches(key string, fields []string) bool {
	lower := strings.ToLower(key)
	for _, f := range fields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func (e *RedactingEncoder) shouldRedactKey(key string) bool {
	return keyMatches(key, e.fields)
}

// EncodeEntry redacts per-entry fields. Fields attached with With reach
// the Add* methods below instead.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if len(e.fields) == 0 && len(e.redactRegex) == 0 {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = e.redactField(f)
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e *RedactingEncoder) redactField(f zapcore.Field) zapcore.Field {
	if e.shouldRedactKey(f.Key) {
		return zap.String(f.Key, redactedValue)
	}
	if f.Type == zapcore.StringType {
		for _, re := range e.redactRegex {
			if re.MatchString(f.String) {
				return zap.String(f.Key, "[REDACTED:pattern]")
			}
		}
	}
	return f
}

// AddString redacts sensitive field names and value patterns.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return
	}
	for _, re := range e.redactRegex {
		if re.MatchString(val) {
			e.Encoder.AddString(key, "[REDACTED:pattern]")
			return
		}
	}
	e.Encoder.AddString(key, val)
}

// AddByteString redacts sensitive field names.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddByteString(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddBinary redacts sensitive field names.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddBinary(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected redacts the whole value when the key is sensitive.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray redacts sensitive field names.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject redacts sensitive field names.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:     e.Encoder.Clone(),
		fields:      e.fields,
		redactRegex: e.redactRegex,
	}
}
