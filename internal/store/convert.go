package store

// convert.go maps Go values to pgtype values. Empty input becomes SQL NULL.

import (
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// toPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// pgUUIDToString converts a pgtype.UUID to its string representation.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// toPgTimestamptz converts a time to pgtype.Timestamptz; the zero time is NULL.
func toPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// parseIPAddress strips an optional port and parses the address.
// Returns nil when the value is not an IP address.
func parseIPAddress(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
