package user

import (
	"testing"
	"time"

	"github.com/academia-hq/academia/core"
)

func TestMakeVerifyToken(t *testing.T) {
	conf := core.NewTestConfig()

	now := time.Now()
	usr := User{
		ID:        core.NewID(),
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := MakeToken(usr, conf)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(usr, conf)
	NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// any password change invalidates the token
	changedUsr := usr
	_ = changedUsr.SetPassword("new-pwd")

	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "another-secret"

	tests := []struct {
		name    string
		usr     User
		conf    *core.Config
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no signature", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "empty stamp", usr: usr, token: ".sigsig", wantErr: errInvalidToken},
		{name: "invalid stamp", usr: usr, token: "h@h@.sigsig", wantErr: errInvalidToken},
		{name: "forged signature", usr: usr, token: "k2v1a.sigsig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", usr: changedUsr, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", usr: usr, conf: otherConf, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		if tt.conf == nil {
			tt.conf = conf
		}
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.usr, tt.token, tt.conf); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: core.NewID()}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID(): %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %s; want %s", id, usr.ID)
	}
	if _, err := decodeUID("%%%"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
