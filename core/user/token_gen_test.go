package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := tokenGenerator{secret: []byte("secret"), timeout: 3 * 24 * time.Hour}

	now := time.Now()
	usr := User{
		ID:        "7f9d4c2e-2b8a-4c44-9d7e-0d6f1b0f2a11",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken, err := gen.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := gen.makeToken(usr)
	NowFunc = time.Now // reset

	// any password change invalidates the token
	changedUsr := usr
	_ = changedUsr.SetPassword("new-pwd")

	// a new login invalidates the token
	loggedInUsr := usr
	loggedInUsr.LastLogin = null.TimeFrom(now.Add(time.Minute))

	otherSecret := tokenGenerator{secret: []byte("other"), timeout: gen.timeout}

	tests := []struct {
		name    string
		gen     tokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: gen, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: gen, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: gen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", gen: gen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: gen, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", gen: gen, usr: changedUsr, token: validToken, wantErr: errInvalidToken},
		{name: "logged in since", gen: gen, usr: loggedInUsr, token: validToken, wantErr: errInvalidToken},
		{name: "other secret", gen: otherSecret, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", gen: gen, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "7f9d4c2e-2b8a-4c44-9d7e-0d6f1b0f2a11"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %s, want %s", id, usr.ID)
	}
	if _, err := decodeUID("%%%"); err == nil {
		t.Error("decodeUID() expected an error for an invalid uid")
	}
}
