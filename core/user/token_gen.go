package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/academia-hq/academia/core"
)

// Reset tokens look like "<issued>.<signature>" where issued is the number of
// minutes since tokenEpoch in base 36. The signature covers the user's ID,
// password hash and last login, so a password change or a new login voids it.

var (
	tokenEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	tokenSalt  = []byte("academia/password-reset")
	NowFunc    = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user ID for use in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// MakeToken issues a password reset token for usr.
func MakeToken(usr User, conf *core.Config) (string, error) {
	issued := int64(NowFunc().Sub(tokenEpoch) / time.Minute)
	stamp := strconv.FormatInt(issued, 36)
	return stamp + "." + signToken(usr, issued, conf.SecretKey), nil
}

func verifyToken(usr User, token string, conf *core.Config) error {
	stamp, sig, ok := strings.Cut(token, ".")
	if !ok || stamp == "" || sig == "" {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil || issued < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(signToken(usr, issued, conf.SecretKey))) {
		return errInvalidToken
	}

	age := NowFunc().Sub(tokenEpoch.Add(time.Duration(issued) * time.Minute))
	if age > conf.PasswordResetTimeoutDelta {
		return errTokenExpired
	}
	return nil
}

func signToken(usr User, issued int64, secretKey string) string {
	key := sha256.Sum256(append(append([]byte(nil), tokenSalt...), secretKey...))
	mac := hmac.New(sha256.New, key[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(issued))
	mac.Write(buf[:])
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
