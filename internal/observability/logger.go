package observability

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

const filtered = "[FILTERED]"

// RedactionPolicy decides which field names are masked before a log line is
// written. Keys are matched case-insensitively at any nesting depth.
type RedactionPolicy struct {
	Sensitive map[string]struct{}
	Partial   map[string]struct{}
}

func DefaultRedactionPolicy() RedactionPolicy {
	return NewRedactionPolicy(
		[]string{
			"password", "currentPassword", "newPassword", "confirmPassword", "passwordConfirmation",
			"password_hash", "token", "accessToken", "access_token", "refreshToken", "refresh_token",
			"authorization", "apiKey", "secret", "jwt_secret", "privateKey", "cardNumber", "cvv", "ssn",
		},
		[]string{"email", "phone", "address", "birthDate", "dob"},
	)
}

func NewRedactionPolicy(sensitive, partial []string) RedactionPolicy {
	policy := RedactionPolicy{
		Sensitive: make(map[string]struct{}, len(sensitive)),
		Partial:   make(map[string]struct{}, len(partial)),
	}
	for _, key := range sensitive {
		policy.Sensitive[strings.ToLower(key)] = struct{}{}
	}
	for _, key := range partial {
		policy.Partial[strings.ToLower(key)] = struct{}{}
	}
	return policy
}

// Sanitize returns a copy of fields with sensitive values replaced.
func (p RedactionPolicy) Sanitize(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = p.sanitizeValue(strings.ToLower(key), value)
	}
	return out
}

func (p RedactionPolicy) sanitizeValue(key string, value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return p.Sanitize(v)
	case map[string]string:
		nested := make(map[string]any, len(v))
		for k, s := range v {
			nested[k] = s
		}
		return p.Sanitize(nested)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = p.sanitizeValue(key, item)
		}
		return items
	}

	if _, ok := p.Sensitive[key]; ok {
		return filtered
	}
	if _, ok := p.Partial[key]; ok {
		if s, ok := value.(string); ok {
			return partialMask(s)
		}
		return filtered
	}
	return value
}

func partialMask(value string) string {
	if local, domain, ok := strings.Cut(value, "@"); ok {
		if len(local) > 2 {
			local = local[:2]
		}
		return local + "***@" + domain
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:1] + "***" + value[len(value)-1:]
}

type Logger struct {
	base   *log.Logger
	policy RedactionPolicy
	now    func() time.Time
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, DefaultRedactionPolicy())
}

func NewLoggerTo(w io.Writer, policy RedactionPolicy) *Logger {
	return &Logger{base: log.New(w, "", 0), policy: policy, now: time.Now}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write("info", message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write("warn", message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]any) {
	payload := map[string]any{
		"timestamp": l.now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
	}
	for k, v := range l.policy.Sanitize(fields) {
		switch k {
		case "timestamp", "level", "message":
			continue
		}
		payload[k] = v
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","message":"failed to encode log"}`)
		return
	}

	l.base.Println(string(encoded))
}
