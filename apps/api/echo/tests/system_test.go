package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/setup"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/testutil"
)

func serveWithSetupKey(method, path, key string, data []byte) int {
	req, rec := newRequest(method, path, data)
	req.Header.Set("X-Setup-Key", key)
	app.ServeHTTP(rec, req)
	return rec.Code
}

func Test_systemApi_setup(t *testing.T) {
	db.Truncate()
	conf.SetupKey = "the-setup-key"
	defer func() { conf.SetupKey = "" }()

	pwd := "Sup3r-S3cret-Pwd!"
	body := marshallObj(t, setup.SetupRequest{
		Admin: user.NewUser{Name: " Head Master ", Username: "Master", Email: "master@test.cd", Role: user.RoleStudent, Password: pwd, PasswordConfirm: pwd},
		Demo:  true,
	})

	runHTTPTests(t, []httpTest{
		{name: "Key or token required", method: http.MethodPost, path: "/v1/system/setup", body: body, wantCode: http.StatusUnauthorized},
	})
	assert.Equal(t, http.StatusForbidden, serveWithSetupKey(http.MethodPost, "/v1/system/setup", "wrong-key", body))
	assert.Equal(t, http.StatusBadRequest, serveWithSetupKey(http.MethodPost, "/v1/system/setup", conf.SetupKey, []byte(`{"admin":{"name":"x"}}`)))

	req, rec := newRequest(http.MethodPost, "/v1/system/setup", body)
	req.Header.Set("X-Setup-Key", conf.SetupKey)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res setup.SetupResult
	unmarshallData(t, rec.Body.Bytes(), &res)
	assert.Equal(t, "Head Master", res.Admin.Name)
	assert.Equal(t, "master", res.Admin.Username)
	assert.Equal(t, user.RoleAdmin, res.Admin.Role)
	assert.True(t, res.Admin.IsActive)
	assert.Len(t, res.Classes, 2)
	assert.Len(t, res.Subjects, 3)

	// the admin can log in
	rec = serve(http.MethodPost, "/v1/users/login", "", []byte(`{"username":"master","password":"`+pwd+`"}`))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// only once
	other := marshallObj(t, setup.SetupRequest{
		Admin: user.NewUser{Name: "Other", Username: "other", Password: pwd, PasswordConfirm: pwd},
	})
	assert.Equal(t, http.StatusConflict, serveWithSetupKey(http.MethodPost, "/v1/system/setup", conf.SetupKey, other))
}

func Test_systemApi_setupWithoutKey(t *testing.T) {
	db.Truncate()
	path := "/v1/system/setup"
	pwd := "Sup3r-S3cret-Pwd!"
	body := marshallObj(t, setup.SetupRequest{
		Admin: user.NewUser{Name: "Head", Username: "head", Password: pwd, PasswordConfirm: pwd},
	})

	// open until the first admin exists
	rec := serve(http.MethodPost, path, "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res setup.SetupResult
	unmarshallData(t, rec.Body.Bytes(), &res)
	assert.Equal(t, user.RoleAdmin, res.Admin.Role)

	other := marshallObj(t, setup.SetupRequest{
		Admin: user.NewUser{Name: "Other", Username: "other", Password: pwd, PasswordConfirm: pwd},
	})
	runHTTPTests(t, []httpTest{
		{name: "Closed once set up", method: http.MethodPost, path: path, body: other, wantCode: http.StatusUnauthorized},
		{name: "Admins get a conflict", method: http.MethodPost, path: path, token: getToken(t, res.Admin), body: other, wantCode: http.StatusConflict},
	})
	assert.Equal(t, http.StatusUnauthorized, serveWithSetupKey(http.MethodPost, path, "any", other))
}

func Test_systemApi_migrate(t *testing.T) {
	db.Truncate()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	path := "/v1/system/migrate"
	before := len(migrator.Commands())

	runHTTPTests(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "Admin only", method: http.MethodPost, path: path, token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{
			name: "Remote commands are limited", method: http.MethodPost, path: path, token: getToken(t, admin),
			body: []byte(`{"command":"down"}`), wantCode: http.StatusBadRequest,
		},
	})

	// the setup key is ignored while none is configured
	assert.Equal(t, http.StatusUnauthorized, serveWithSetupKey(http.MethodPost, path, "any", nil))

	rec := serve(http.MethodPost, path, getToken(t, admin), []byte(`{}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res setup.MigrateResult
	unmarshallData(t, rec.Body.Bytes(), &res)
	assert.Equal(t, "up", res.Command)

	rec = serve(http.MethodPost, path, getToken(t, admin), []byte(`{"command":" STATUS "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status setup.MigrateResult
	unmarshallData(t, rec.Body.Bytes(), &status)
	assert.Equal(t, setup.MigrateResult{Command: "status", Version: res.Version}, status)

	assert.Equal(t, []string{"up", "status"}, migrator.Commands()[before:])
}
