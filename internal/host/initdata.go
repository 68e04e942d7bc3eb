package host

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingHash  = errors.New("init data has no hash")
	ErrBadSignature = errors.New("init data signature mismatch")
	ErrExpired      = errors.New("init data expired")
)

// ParseInitData validates Telegram WebApp initData against botToken and
// returns the launching user. Data signed more than maxAge before now is
// rejected; a zero maxAge disables the check.
func ParseInitData(raw, botToken string, maxAge time.Duration, now time.Time) (Telegram, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return Telegram{}, fmt.Errorf("parse init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return Telegram{}, ErrMissingHash
	}

	want := Sign(values, botToken)
	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, want) {
		return Telegram{}, ErrBadSignature
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return Telegram{}, fmt.Errorf("parse auth_date: %w", err)
		}
		if now.Sub(time.Unix(authDate, 0)) > maxAge {
			return Telegram{}, ErrExpired
		}
	}

	var user User
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return Telegram{}, fmt.Errorf("parse user: %w", err)
		}
	}
	return Telegram{user: user}, nil
}

// Sign computes the initData hash: HMAC-SHA256 of the sorted key=value lines
// (hash excluded) keyed with HMAC-SHA256("WebAppData", botToken).
func Sign(values url.Values, botToken string) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
