package db

import (
	"net"
	"net/url"
	"strings"
)

// libpqKeys are the keywords that make a string a key=value DSN.
var libpqKeys = map[string]bool{
	"host": true, "port": true, "user": true,
	"password": true, "dbname": true, "sslmode": true,
}

func isURLDSN(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "postgres://") || strings.HasPrefix(l, "postgresql://")
}

// dsnPairs splits a key=value DSN into lowercased keys. known is false when
// none of the keys is a libpq keyword.
func dsnPairs(s string) (pairs map[string]string, known bool) {
	pairs = make(map[string]string)
	for _, field := range strings.Fields(s) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(k)
		pairs[k] = v
		known = known || libpqKeys[k]
	}
	return pairs, known
}

// NormalizeDSN strips surrounding quotes and whitespace. URL DSNs are kept
// as given; key=value DSNs get single spacing and sslmode=disable unless a
// sslmode is set. Anything else goes to the driver untouched.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if s == "" || isURLDSN(s) {
		return s
	}
	pairs, known := dsnPairs(s)
	if !known {
		return s
	}
	out := strings.Join(strings.Fields(s), " ")
	if _, set := pairs["sslmode"]; !set {
		out += " sslmode=disable"
	}
	return out
}

// ToURLDSN rewrites a key=value DSN as the postgres:// URL golang-migrate
// wants. It needs host, user and dbname; otherwise dsn comes back as is.
func ToURLDSN(dsn string) string {
	if dsn == "" || isURLDSN(dsn) {
		return dsn
	}
	p, _ := dsnPairs(dsn)
	host, user, name := p["host"], p["user"], p["dbname"]
	if host == "" || user == "" || name == "" {
		return dsn
	}
	u := url.URL{Scheme: "postgres", Host: host, Path: "/" + name, User: url.User(user)}
	if port := p["port"]; port != "" {
		u.Host = net.JoinHostPort(host, port)
	}
	if pw := p["password"]; pw != "" {
		u.User = url.UserPassword(user, pw)
	}
	if mode, ok := p["sslmode"]; ok {
		u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	}
	return u.String()
}

// MaskDSN hides the password for logging.
func MaskDSN(dsn string) string {
	if isURLDSN(dsn) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "postgres://***"
		}
		return u.Redacted()
	}
	fields := strings.Fields(dsn)
	for i, field := range fields {
		if k, _, ok := strings.Cut(field, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=***"
		}
	}
	return strings.Join(fields, " ")
}
