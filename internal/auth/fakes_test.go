package auth_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"account-auth/internal/auth"
	"account-auth/internal/directory"
)

// flakyDirectory wraps the in-memory directory and fails selected calls.
type flakyDirectory struct {
	*directory.Memory

	findByEmailErr error
	findByIDErr    error
	createErr      error
	recordLoginErr error
}

func newFlakyDirectory() *flakyDirectory {
	return &flakyDirectory{Memory: directory.NewMemory()}
}

func (d *flakyDirectory) FindByEmail(ctx context.Context, email string) (auth.Account, error) {
	if d.findByEmailErr != nil {
		return auth.Account{}, d.findByEmailErr
	}
	return d.Memory.FindByEmail(ctx, email)
}

func (d *flakyDirectory) FindByID(ctx context.Context, id string) (auth.Account, error) {
	if d.findByIDErr != nil {
		return auth.Account{}, d.findByIDErr
	}
	return d.Memory.FindByID(ctx, id)
}

func (d *flakyDirectory) Create(ctx context.Context, account auth.NewAccount) (auth.Account, error) {
	if d.createErr != nil {
		return auth.Account{}, d.createErr
	}
	return d.Memory.Create(ctx, account)
}

func (d *flakyDirectory) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if d.recordLoginErr != nil {
		return d.recordLoginErr
	}
	return d.Memory.RecordLogin(ctx, id, at)
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) Info(message string, fields map[string]any) {
	l.add("info", message, fields)
}

func (l *recordingLogger) Warn(message string, fields map[string]any) {
	l.add("warn", message, fields)
}

func (l *recordingLogger) Error(message string, fields map[string]any) {
	l.add("error", message, fields)
}

func (l *recordingLogger) add(level, message string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Message: message, Fields: fields})
}

func (l *recordingLogger) has(level, message string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

func (l *recordingLogger) dump() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	encoded, _ := json.Marshal(l.entries)
	return string(encoded)
}
