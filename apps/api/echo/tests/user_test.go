package tests

import (
	"bytes"
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/academia-hq/academia/apps/api/echo"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/permission"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

func Test_userApi_login(t *testing.T) {
	app := newTestApp(t)

	testutil.CreateUser(t, app.Repos.User, "Hero", "hero", "hero@test.cd", "LolC@t123", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, app.Repos.User, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", []string{user.RoleStudent}, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog@test.cd", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "LolC@t123"})},
		{name: "login with email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: "HERO@test.cd", Password: "LolC@t123"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_loginRateLimited(t *testing.T) {
	app := newTestApp(t)
	app.Conf.Server.AuthRateLimit = 0.001
	app.Conf.Server.AuthRateBurst = 2
	app.srv = echoapi.NewServer(echoapi.ServerDeps{
		Conf:       app.Conf,
		Logger:     core.NewNopLogger(),
		Validate:   app.Validate,
		Translator: app.Translator,
		Registry:   app.Registry,
		Services:   app.Svcs,
	})

	body := marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "lol"})
	for i := 0; i < 2; i++ {
		rec := app.do(t, http.MethodPost, "/api/users/login", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := app.do(t, http.MethodPost, "/api/users/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())

	// un-limited endpoints are unaffected
	rec = app.do(t, http.MethodPost, "/api/users/password-reset-confirm", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_userApi_userQuery(t *testing.T) {
	app := newTestApp(t)

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now().Truncate(time.Second)
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)
	t4 := now.Add(4 * time.Hour)
	t5 := now.Add(5 * time.Hour)

	repo := app.Repos.User
	usr1 := testutil.CreateUser(t, repo, "User", "awe", "awe@test.cd", "", nil, true, t1)
	usr2 := testutil.CreateUser(t, repo, "King", "user02", "king@test.cd", "", nil, true, now)
	student := testutil.CreateUser(t, repo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true, now)
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, t2)
	principal := testutil.CreateUser(t, repo, "Principal", "princip", "princip@test.cd", "", []string{user.RoleAdminPrincipal}, true, now)
	teacher := testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true, t3)
	naughty := testutil.CreateUser(t, repo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false, now)

	adminToken := app.token(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: app.token(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all (by name)", path: "/api/users", token: adminToken,
			wantData: marchallList(t, admin, student, usr2, naughty, principal, teacher, usr1),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", "", time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, student, usr2, usr1),
		},
		{name: "role (unknown)", path: path("", "", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=admin:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, admin, principal),
		},
		{
			name: "role=teacher:,student:", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleTeacher, user.RoleStudent),
			token: adminToken, wantData: marchallList(t, student, naughty, teacher),
		},
		{name: "is_active=false", path: path("", "", time.Time{}, time.Time{}, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "created_from", path: path("", "", t1, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, admin, teacher, usr1),
		},
		{name: "created_from - created_to (empty)", path: path("", "", t4, t5, nil), token: adminToken, wantData: empty},
		{name: "created_from - created_to (found)", path: path("", "", t1, t2, nil), token: adminToken, wantData: marchallList(t, admin, usr1)},
		// ordering
		{
			name: "order by -created_at,name", path: path("", "-created_at,name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, teacher, admin, usr1, student, usr2, naughty, principal),
		},
		{
			name: "order by is_active,-name", path: path("", "is_active,-name", time.Time{}, time.Time{}, nil), token: adminToken,
			wantData: marchallList(t, naughty, usr1, teacher, principal, usr2, student, admin),
		},
		{
			name: "unknown ordering field ignored", path: path("", "lol", time.Time{}, time.Time{}, nil, user.RoleAdmin), token: adminToken,
			wantData: marchallList(t, admin, principal),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	app := newTestApp(t)

	naughty := testutil.CreateUser(t, app.Repos.User, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, app.Repos.User, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    app.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(app.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * app.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(app.Conf.SecretKey, unrefreshableClaims)
	require.NoError(t, err)

	forgedToken, err := echoapi.GenerateToken("not-the-secret", echoapi.GetUserClaims(app.Conf, student))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Forged token", token: forgedToken, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "Inactive user not allowed", token: app.token(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: app.token(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code)
				assert.NotEmpty(t, decode[echoapi.LoginResponse](t, rec).Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	app := newTestApp(t)

	student := testutil.CreateUser(t, app.Repos.User, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})
	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Name, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			app.Mail.Reset()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			extra, ok := tt.extra.(extraTest)
			if !ok {
				return
			}
			sent := app.Mail.SentMessages()
			if !extra.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, extra.to, msg.To[0])
			assert.Contains(t, msg.TextContent, extra.to.Name)
			assert.Contains(t, msg.HTMLContent, extra.to.Name)
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	app := newTestApp(t)

	student := testutil.CreateUser(t, app.Repos.User, "Hero", "hero", "user3@test.cd", "lol", []string{user.RoleStudent}, true)
	validUID := user.EncodeUID(student)
	validToken, err := user.MakeToken(student, app.Conf)
	require.NoError(t, err)

	// generate an expired token
	dayLate := app.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := user.MakeToken(student, app.Conf)
	user.NowFunc = time.Now // reset
	require.NoError(t, err)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := app.Repos.User.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				require.NoError(t, err)
				if bytes.Equal(refreshed.PasswordHash, student.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}

func Test_userApi_userDestroy(t *testing.T) {
	app := newTestApp(t)
	repo := app.Repos.User

	owner := testutil.CreateUser(t, repo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, repo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := app.token(t, admin)

	tests := []httpTest{
		{name: "student cannot delete", path: "/api/users/" + student.ID, token: app.token(t, student), wantCode: http.StatusForbidden},
		{name: "cannot delete self", path: "/api/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "cannot delete higher role", path: "/api/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "unknown user", path: "/api/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{name: "deleted", path: "/api/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "already deleted", path: "/api/users/" + student.ID, token: adminToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodDelete, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func Test_userApi_myPermissions(t *testing.T) {
	app := newTestApp(t)
	repo := app.Repos.User

	student := testutil.CreateUser(t, repo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	owner := testutil.CreateUser(t, repo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)

	rec := app.do(t, http.MethodGet, "/api/users/me/permissions", app.token(t, student), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms := decode[echoapi.PermissionsResponse](t, rec).Permissions
	assert.Contains(t, perms, permission.GradeRead)
	assert.NotContains(t, perms, permission.GradeWrite)

	rec = app.do(t, http.MethodGet, "/api/users/me/permissions", app.token(t, teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms = decode[echoapi.PermissionsResponse](t, rec).Permissions
	assert.Contains(t, perms, permission.GradeRead) // inherited from the student template
	assert.Contains(t, perms, permission.GradeWrite)
	assert.NotContains(t, perms, permission.GradePublish)

	rec = app.do(t, http.MethodGet, "/api/users/me/permissions", app.token(t, owner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perms = decode[echoapi.PermissionsResponse](t, rec).Permissions
	assert.Contains(t, perms, permission.PermissionWrite)
	assert.Contains(t, perms, permission.GradePublish)
}
