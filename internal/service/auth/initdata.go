package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	svcErr "github.com/oggyb/luvo/internal/errors"
)

// TelegramUser is the "user" object carried inside WebApp initData.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VerifyInitData checks the signature of a Telegram WebApp initData
// string and returns the user it was issued for.
//
// The data-check string is every field except hash, sorted by key and
// joined as "key=value" lines. The signing key is
// HMAC-SHA256("WebAppData", botToken). auth_date older than maxAge is
// rejected; maxAge <= 0 disables the check.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*TelegramUser, error) {
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return nil, svcErr.InvalidArgument("malformed init_data")
	}

	received := vals.Get("hash")
	if received == "" {
		return nil, svcErr.InvalidArgument("missing hash in init_data")
	}
	vals.Del("hash")

	if !hmac.Equal([]byte(Sign(vals, botToken)), []byte(received)) {
		return nil, svcErr.Forbidden("invalid init_data signature")
	}

	if maxAge > 0 {
		ts, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, svcErr.InvalidArgument("missing auth_date in init_data")
		}
		if now.Sub(time.Unix(ts, 0)) > maxAge {
			return nil, svcErr.Forbidden("init_data is too old")
		}
	}

	var u TelegramUser
	if err := json.Unmarshal([]byte(vals.Get("user")), &u); err != nil || u.ID == 0 {
		return nil, svcErr.InvalidArgument("missing user in init_data")
	}
	return &u, nil
}

// Sign computes the hex hash Telegram attaches to vals. vals must not
// contain the hash field.
func Sign(vals url.Values, botToken string) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
