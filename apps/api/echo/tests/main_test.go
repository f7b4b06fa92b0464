package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/academia-hq/academia/apps/api/echo"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
	testutil "github.com/academia-hq/academia/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

// testApp is a server over a fresh in-memory environment with the default permission templates.
type testApp struct {
	*testutil.Env
	srv *echoapi.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	env := testutil.NewEnv(t)
	_, err := env.Svcs.Permission.EnsureDefaults(context.Background())
	require.NoError(t, err)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       env.Conf,
		Logger:     core.NewNopLogger(),
		Validate:   env.Validate,
		Translator: env.Translator,
		Registry:   env.Registry,
		Services:   env.Svcs,
	})
	return &testApp{Env: env, srv: srv}
}

func (app *testApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.srv.ServeHTTP(w, r)
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(app.Conf.SecretKey, echoapi.GetUserClaims(app.Conf, usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

// do serves a JSON request; body is marshalled unless it already is a []byte.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var data []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		data = b
	default:
		data = marchallObj(t, b)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode(): %v; body %s", err, rec.Body.String())
	}
	return v
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
