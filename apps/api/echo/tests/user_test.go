package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/testutil"
)

func Test_userApi_login(t *testing.T) {
	db.Truncate()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", testutil.Password, user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", testutil.Password, user.RoleStudent, false)

	body := func(uname, pwd string) []byte {
		return marshallObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	failed := marshallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "Missing credentials", body: body("", ""), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"success":false,"error":"invalid data","fields":{"username":"this field is required","password":"this field is required"}}`),
		},
		{name: "Unknown user", body: body("nobody", testutil.Password), wantCode: http.StatusBadRequest, wantData: failed},
		{name: "Wrong password", body: body("hero", "wrong"), wantCode: http.StatusBadRequest, wantData: failed},
		{
			name: "Inactive user", body: body("ndog", testutil.Password), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/login"
	}
	runHTTPTests(t, tests)

	for _, uname := range []string{"hero", "HERO ", "hero@test.cd"} {
		t.Run("Logged in as "+uname, func(t *testing.T) {
			rec := serve(http.MethodPost, "/v1/users/login", "", body(uname, testutil.Password))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshallData(t, rec.Body.Bytes(), &resp)
			assert.Equal(t, student.ID, resp.User.ID)
			assert.True(t, resp.User.LastLogin.Valid)
			assert.NotEmpty(t, resp.Token)

			// the token works as bearer & as session cookie
			assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/v1/users/me", resp.Token).Code)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, conf.Server.SessionCookieName, cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)

			req, meRec := newRequest(http.MethodGet, "/v1/users/me")
			req.AddCookie(cookies[0])
			app.ServeHTTP(meRec, req)
			assert.Equal(t, http.StatusOK, meRec.Code)
		})
	}
}

func Test_userApi_logout(t *testing.T) {
	rec := serve(http.MethodPost, "/v1/users/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func Test_userApi_me(t *testing.T) {
	db.Truncate()

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", user.RoleStudent, false)
	ghost := user.User{ID: "00000000-0000-0000-0000-000000000000", Role: user.RoleAdmin}

	runHTTPTests(t, []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "Invalid token", path: "/v1/users/me", token: "not-a-token", wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Unknown user", path: "/v1/users/me", token: getToken(t, ghost), wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "Inactive user", path: "/v1/users/me", token: getToken(t, naughty), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Me", path: "/v1/users/me", token: getToken(t, teacher), wantData: marshallObj(t, teacher)},
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	db.Truncate()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	now := time.Now()
	unrefreshableClaims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   student.ID,
			Audience:  "Darasa",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Role:         student.Role,
	}
	unrefreshableToken, err := GenerateToken(conf, unrefreshableClaims)
	require.NoError(t, err)

	runHTTPTests(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized},
		{
			name: "Refresh period expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, student)},
	})
}

func Test_userApi_register(t *testing.T) {
	db.Truncate()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)

	newUser := func(name, uname, email, role, pwd string) []byte {
		return marshallObj(t, user.NewUser{Name: name, Username: uname, Email: email, Role: role, Password: pwd, PasswordConfirm: pwd})
	}

	runHTTPTests(t, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, teacher),
			body: newUser("Kid", "kiddo", "kid@test.cd", user.RoleStudent, testutil.Password), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, errForbidden),
		},
		{
			name: "Invalid role", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, admin),
			body: newUser("Kid", "kiddo", "kid@test.cd", "PRINCIPAL", testutil.Password), wantCode: http.StatusBadRequest,
		},
		{
			name: "Duplicate username", method: http.MethodPost, path: "/v1/users/register", token: getToken(t, admin),
			body: newUser("Kid", "teacher", "kid@test.cd", user.RoleStudent, testutil.Password), wantCode: http.StatusBadRequest,
		},
	})

	rec := serve(http.MethodPost, "/v1/users/register", getToken(t, admin), newUser("Kid", "kiddo", "kid@test.cd", user.RoleStudent, testutil.Password))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	unmarshallData(t, rec.Body.Bytes(), &usr)
	assert.Equal(t, "kiddo", usr.Username)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.IsActive)

	// the new user can log in
	rec = serve(http.MethodPost, "/v1/users/login", "", marshallObj(t, LoginRequest{Username: "kiddo", Password: testutil.Password}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_query(t *testing.T) {
	db.Truncate()

	path := func(search, ordering string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}

	now := time.Now()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true, now.Add(-3*time.Hour))
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true, now.Add(-2*time.Hour))
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true, now.Add(-1*time.Hour))
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "Admin required", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marshallList(t, admin, student, teacher)},
		{name: "search (unknown)", path: path("lol", ""), token: adminToken, wantData: marshallList(t)},
		{name: "search=HER", path: path("HER", ""), token: adminToken, wantData: marshallList(t, student, teacher)},
		{name: "role=TEACHER", path: path("", "", user.RoleTeacher), token: adminToken, wantData: marshallList(t, teacher)},
		{name: "order by -created_at", path: path("", "-created_at"), token: adminToken, wantData: marshallList(t, student, teacher, admin)},
		{name: "roles", path: "/v1/users/roles", token: adminToken, wantData: marshallObj(t, user.Roles)},
	})
}

func Test_userApi_update(t *testing.T) {
	db.Truncate()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", "", user.RoleStudent, true)
	bTrue, bFalse := true, false

	body := func(uu user.UpdateUser) []byte { return marshallObj(t, uu) }

	runHTTPTests(t, []httpTest{
		{
			name: "Others are hidden", method: http.MethodPut, path: "/v1/users/" + other.ID, token: getToken(t, student),
			body: body(user.UpdateUser{Name: "Pwned"}), wantCode: http.StatusNotFound,
		},
		{
			name: "Students cannot change their role", method: http.MethodPut, path: "/v1/users/" + student.ID, token: getToken(t, student),
			body: body(user.UpdateUser{Role: user.RoleAdmin}), wantCode: http.StatusForbidden,
		},
		{
			name: "Students cannot reactivate themselves", method: http.MethodPut, path: "/v1/users/" + student.ID, token: getToken(t, student),
			body: body(user.UpdateUser{IsActive: &bTrue}), wantCode: http.StatusForbidden,
		},
		{
			name: "Admins cannot deactivate themselves", method: http.MethodPut, path: "/v1/users/" + admin.ID, token: getToken(t, admin),
			body: body(user.UpdateUser{IsActive: &bFalse}), wantCode: http.StatusForbidden,
		},
		{
			name: "Admins cannot demote themselves", method: http.MethodPut, path: "/v1/users/" + admin.ID, token: getToken(t, admin),
			body: body(user.UpdateUser{Role: user.RoleTeacher}), wantCode: http.StatusForbidden,
		},
		{name: "Nobody deletes themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: getToken(t, admin), wantCode: http.StatusForbidden},
	})

	rec := serve(http.MethodPut, "/v1/users/"+student.ID, getToken(t, student), body(user.UpdateUser{Name: "  Super Hero "}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	unmarshallData(t, rec.Body.Bytes(), &usr)
	assert.Equal(t, "Super Hero", usr.Name)

	rec = serve(http.MethodPut, "/v1/users/"+other.ID, getToken(t, admin), body(user.UpdateUser{IsActive: &bFalse}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/v1/users/me", getToken(t, other)).Code)

	rec = serve(http.MethodDelete, "/v1/users/"+other.ID, getToken(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/v1/users/"+other.ID, getToken(t, admin)).Code)
}

func Test_userApi_passwordReset(t *testing.T) {
	db.Truncate()
	emailsvc.ResetSentMessages()

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", testutil.Password, user.RoleStudent, true)

	// unknown emails get the same answer
	for _, email := range []string{"nobody@test.cd", "hero@test.cd"} {
		rec := serve(http.MethodPost, "/v1/users/password-reset", "", marshallObj(t, PasswordResetRequest{Email: email}))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "hero@test.cd", sent[0].To[0].Address)

	token, err := user.MakeTestToken(student, conf)
	require.NoError(t, err)
	newPwd := "N3w-Pa$$w0rd!"
	data, err := json.Marshal(user.ResetUserPassword{Token: token, UID: user.EncodeUID(student), Password: newPwd, PasswordConfirm: newPwd})
	require.NoError(t, err)

	rec := serve(http.MethodPost, "/v1/users/password-reset-confirm", "", data)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the token is bound to the old password
	rec = serve(http.MethodPost, "/v1/users/password-reset-confirm", "", data)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodPost, "/v1/users/login", "", marshallObj(t, LoginRequest{Username: "hero", Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
