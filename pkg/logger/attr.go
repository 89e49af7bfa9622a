package logger

import (
	"log/slog"
	"time"
)

// Error returns an "error" attribute, or an empty attribute when err is nil
// so callers can pass it unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func PrincipalID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("principal_id", id)
}

func ProfileID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("profile_id", id)
}

// AuthEvent tags a record with the auth event kind being processed.
func AuthEvent(kind string) slog.Attr {
	return slog.String("auth_event", kind)
}

func Outcome(outcome string) slog.Attr {
	return slog.String("outcome", outcome)
}

func Page(name string) slog.Attr {
	return slog.String("page", name)
}

func TabID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("tab_id", id)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func BrowserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("browser_id", id)
}
