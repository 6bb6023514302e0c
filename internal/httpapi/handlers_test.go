package httpapi

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/bindtoken"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/certs"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/secrets"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/store/memory"
)

type testEnv struct {
	api     *API
	handler http.Handler
	store   *memory.Store
}

// newTestEnv wires a full API over the in-memory store. With provisionCA set,
// the secrets directory carries freshly generated identity and permissions
// CAs so certificate and signing endpoints work end to end.
func newTestEnv(t *testing.T, provisionCA bool) *testEnv {
	t.Helper()

	store := memory.New()
	gate, err := authz.NewGate(dds.NewMembership(store.Members()))
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	grants, err := dds.NewGrantService(store, gate)
	if err != nil {
		t.Fatalf("grant service: %v", err)
	}
	actions, err := dds.NewActionService(store, gate)
	if err != nil {
		t.Fatalf("action service: %v", err)
	}
	applications, err := dds.NewApplicationService(store, gate)
	if err != nil {
		t.Fatalf("application service: %v", err)
	}
	permissions, err := dds.NewPermissionService(store, gate)
	if err != nil {
		t.Fatalf("permission service: %v", err)
	}
	tokens, err := bindtoken.NewService("test-secret")
	if err != nil {
		t.Fatalf("bind tokens: %v", err)
	}
	userTokens, err := NewTokenAuthority("test-secret")
	if err != nil {
		t.Fatalf("user tokens: %v", err)
	}

	dir := ""
	if provisionCA {
		dir = t.TempDir()
		writeTestCA(t, dir, secrets.IdentityCACertFile, secrets.IdentityCAKeyFile, "Test Identity CA")
		writeTestCA(t, dir, secrets.PermissionsCACertFile, secrets.PermissionsCAKeyFile, "Test Permissions CA")
	}
	secretStore, err := secrets.NewFileStore(dir)
	if err != nil {
		t.Fatalf("secrets: %v", err)
	}
	t.Cleanup(func() { secretStore.Close() })

	signer, err := certs.NewSigner(secretStore)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	api := New(Deps{
		Store:        store,
		Gate:         gate,
		Grants:       grants,
		Actions:      actions,
		Applications: applications,
		Permissions:  permissions,
		Tokens:       tokens,
		Signer:       signer,
		Secrets:      secretStore,
		UserTokens:   userTokens,
		Version:      "test",
	})
	return &testEnv{api: api, handler: api.Handler(), store: store}
}

func writeTestCA(t *testing.T, dir, certFile, keyFile, cn string) {
	t.Helper()
	key, err := certs.NewECDSAKey()
	if err != nil {
		t.Fatalf("ca key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("ca cert: %v", err)
	}
	keyPEM, err := certs.PrivateKeyToPEM(key)
	if err != nil {
		t.Fatalf("encode key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, certFile), []byte(certs.CertToPEM(der)), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, keyFile), []byte(keyPEM), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.api.userTokens.Generate(1, "admin@example.com", true)
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}
	return token
}

func (e *testEnv) userToken(t *testing.T, userID int64) string {
	t.Helper()
	token, _, err := e.api.userTokens.Generate(userID, "user@example.com", false)
	if err != nil {
		t.Fatalf("generate user token: %v", err)
	}
	return token
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withBasic(appID int64, passphrase string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(strconv.FormatInt(appID, 10), passphrase) }
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// seedCatalog creates a group with a topic, duration and interval through the
// API, returning their ids.
func (e *testEnv) seedCatalog(t *testing.T, admin string) (groupID, topicID, durationID, intervalID int64) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/groups", `{"name":"fleet"}`, withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: %d %s", rec.Code, rec.Body.String())
	}
	var group dds.Group
	decodeBody(t, rec, &group)

	rec = e.do(t, http.MethodPost, "/api/topics",
		fmt.Sprintf(`{"group_id":%d,"kind":"B","name":"Telemetry"}`, group.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create topic: %d %s", rec.Code, rec.Body.String())
	}
	var topic dds.Topic
	decodeBody(t, rec, &topic)

	rec = e.do(t, http.MethodPost, "/api/durations",
		fmt.Sprintf(`{"group_id":%d,"name":"hour","duration_in_milliseconds":3600000}`, group.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create duration: %d %s", rec.Code, rec.Body.String())
	}
	var duration dds.GrantDuration
	decodeBody(t, rec, &duration)

	rec = e.do(t, http.MethodPost, "/api/intervals",
		fmt.Sprintf(`{"group_id":%d,"name":"june","start_date":"2025-06-01T00:00:00Z","end_date":"2025-07-01T00:00:00Z"}`, group.ID),
		withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create interval: %d %s", rec.Code, rec.Body.String())
	}
	var interval dds.ActionInterval
	decodeBody(t, rec, &interval)

	return group.ID, topic.ID, duration.ID, interval.ID
}

func (e *testEnv) createApplication(t *testing.T, admin string, groupID int64, name string) (*dds.Application, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/applications",
		fmt.Sprintf(`{"group_id":%d,"name":%q}`, groupID, name), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create application: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Application *dds.Application `json:"application"`
		Passphrase  string           `json:"passphrase"`
	}
	decodeBody(t, rec, &resp)
	if resp.Passphrase == "" {
		t.Fatalf("create application must return the passphrase")
	}
	return resp.Application, resp.Passphrase
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("body = %v", body)
	}
}

func TestAuthTokenEndpoint(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/token",
		`{"user_id":1,"email":"admin@example.com","admin":true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token == "" || !resp.ExpiresAt.After(time.Now()) {
		t.Fatalf("token response = %+v", resp)
	}

	// The issued token authenticates subsequent calls.
	rec = env.do(t, http.MethodGet, "/api/groups", "", withBearer(resp.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("groups with issued token: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/token", `{"email":"x@example.com"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id: %d", rec.Code)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/groups", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/groups", "", withBearer("garbage"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/groups", "", withBasic(1, "wrong"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad basic credentials: %d", rec.Code)
	}
}

func TestNonAdminForbidden(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.userToken(t, 50)

	rec := env.do(t, http.MethodPost, "/api/groups", `{"name":"fleet"}`, withBearer(user))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin group create: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCatalogWorkflow(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, topicID, durationID, intervalID := env.seedCatalog(t, admin)

	// Topic set with the topic as a member.
	rec := env.do(t, http.MethodPost, "/api/topic_sets",
		fmt.Sprintf(`{"group_id":%d,"name":"all"}`, groupID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create topic set: %d %s", rec.Code, rec.Body.String())
	}
	var set dds.TopicSet
	decodeBody(t, rec, &set)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/topic_sets/%d/topics", set.ID),
		fmt.Sprintf(`{"topic_id":%d}`, topicID), withBearer(admin))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("add topic to set: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/topic_sets/%d", set.ID), "", withBearer(admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("get topic set: %d", rec.Code)
	}
	var setResp struct {
		TopicIDs []int64 `json:"topic_ids"`
	}
	decodeBody(t, rec, &setResp)
	if len(setResp.TopicIDs) != 1 || setResp.TopicIDs[0] != topicID {
		t.Fatalf("topic_ids = %v", setResp.TopicIDs)
	}

	// Application, grant, action.
	app, _ := env.createApplication(t, admin, groupID, "sensor")

	rec = env.do(t, http.MethodPost, "/api/grants",
		fmt.Sprintf(`{"name":"g1","application_id":%d,"grant_duration_id":%d}`, app.ID, durationID),
		withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create grant: %d %s", rec.Code, rec.Body.String())
	}
	var grant dds.ApplicationGrant
	decodeBody(t, rec, &grant)

	rec = env.do(t, http.MethodPost, "/api/actions",
		fmt.Sprintf(`{"application_grant_id":%d,"action_interval_id":%d,"can_publish":true,"topic_ids":[%d]}`,
			grant.ID, intervalID, topicID),
		withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create action: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/grants?application=%d", app.ID), "", withBearer(admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("list grants: %d", rec.Code)
	}
	var grants []dds.ApplicationGrant
	decodeBody(t, rec, &grants)
	if len(grants) != 1 || grants[0].Name != "g1" {
		t.Fatalf("grants = %+v", grants)
	}

	// Duplicate grant name conflicts.
	rec = env.do(t, http.MethodPost, "/api/grants",
		fmt.Sprintf(`{"name":"g1","application_id":%d,"grant_duration_id":%d}`, app.ID, durationID),
		withBearer(admin))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate grant: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGroupVisibility(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, _, _, _ := env.seedCatalog(t, admin)

	// Second, private group the user does not belong to.
	rec := env.do(t, http.MethodPost, "/api/groups", `{"name":"other"}`, withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/groups/%d/members", groupID),
		`{"user_id":50,"email":"user@example.com"}`, withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: %d %s", rec.Code, rec.Body.String())
	}

	user := env.userToken(t, 50)
	rec = env.do(t, http.MethodGet, "/api/groups", "", withBearer(user))
	if rec.Code != http.StatusOK {
		t.Fatalf("list groups: %d", rec.Code)
	}
	var groups []dds.Group
	decodeBody(t, rec, &groups)
	if len(groups) != 1 || groups[0].ID != groupID {
		t.Fatalf("member must see only their groups, got %+v", groups)
	}

	// Members read the catalog but cannot create topics.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/topics?group=%d", groupID), "", withBearer(user))
	if rec.Code != http.StatusOK {
		t.Fatalf("member topic list: %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/topics",
		fmt.Sprintf(`{"group_id":%d,"kind":"C","name":"X"}`, groupID), withBearer(user))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member topic create: %d", rec.Code)
	}
}

func TestDurationDeleteGuard(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, _, durationID, _ := env.seedCatalog(t, admin)
	app, _ := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodPost, "/api/grants",
		fmt.Sprintf(`{"name":"g1","application_id":%d,"grant_duration_id":%d}`, app.ID, durationID),
		withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create grant: %d %s", rec.Code, rec.Body.String())
	}
	var grant dds.ApplicationGrant
	decodeBody(t, rec, &grant)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/durations/%d", durationID), "", withBearer(admin))
	if rec.Code != http.StatusConflict {
		t.Fatalf("referenced duration delete: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/grants/%d", grant.ID), "", withBearer(admin))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete grant: %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/durations/%d", durationID), "", withBearer(admin))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unreferenced duration delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGrantTokenRedemption(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, _, durationID, _ := env.seedCatalog(t, admin)
	app, passphrase := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/applications/%d/grant_token", app.ID), "", withBearer(admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("issue grant token: %d %s", rec.Code, rec.Body.String())
	}
	bindToken := rec.Body.String()
	if !strings.Contains(bindToken, ".") {
		t.Fatalf("expected a compact JWT, got %q", bindToken)
	}

	// The application redeems the token over machine login. The token binds
	// the grant to the application it names, whatever the body claims.
	rec = env.do(t, http.MethodPost, "/api/grants",
		fmt.Sprintf(`{"name":"via-token","application_id":999,"grant_duration_id":%d}`, durationID),
		func(r *http.Request) {
			r.SetBasicAuth(strconv.FormatInt(app.ID, 10), passphrase)
			r.Header.Set("X-Grant-Token", bindToken)
		})
	if rec.Code != http.StatusCreated {
		t.Fatalf("redeem grant token: %d %s", rec.Code, rec.Body.String())
	}
	var grant dds.ApplicationGrant
	decodeBody(t, rec, &grant)
	if grant.ApplicationID != app.ID {
		t.Fatalf("grant bound to %d, want %d", grant.ApplicationID, app.ID)
	}

	// A tampered token is rejected before any write.
	rec = env.do(t, http.MethodPost, "/api/grants",
		fmt.Sprintf(`{"name":"bad","grant_duration_id":%d}`, durationID),
		func(r *http.Request) {
			r.SetBasicAuth(strconv.FormatInt(app.ID, 10), passphrase)
			r.Header.Set("X-Grant-Token", bindToken+"x")
		})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPermissionsDocumentJSON(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, _, _, _ := env.seedCatalog(t, admin)
	app, passphrase := env.createApplication(t, admin, groupID, "sensor")

	// Document endpoints exist only for authenticated applications.
	rec := env.do(t, http.MethodGet, "/api/applications/permissions.json?nonce=abc", "", withBearer(admin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("user session on document endpoint: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/applications/permissions.json", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("absent nonce: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/applications/permissions.json?nonce=a-b", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid nonce: %d %s", rec.Code, rec.Body.String())
	}

	// Pin the clock: the ETag must be identical across repeated requests so
	// the If-None-Match check below is deterministic.
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	rec = env.do(t, http.MethodGet, "/api/applications/permissions.json?nonce=abc", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusOK {
		t.Fatalf("document: %d %s", rec.Code, rec.Body.String())
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("document must carry an ETag")
	}
	var doc struct {
		Subject string `json:"subject"`
	}
	decodeBody(t, rec, &doc)
	want := fmt.Sprintf("CN=%d_abc,GN=sensor,SN=%d", app.ID, groupID)
	if doc.Subject != want {
		t.Fatalf("subject = %q, want %q", doc.Subject, want)
	}

	rec = env.do(t, http.MethodGet, "/api/applications/permissions.json?nonce=abc", "",
		func(r *http.Request) {
			r.SetBasicAuth(strconv.FormatInt(app.ID, 10), passphrase)
			r.Header.Set("If-None-Match", etag)
		})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("matching etag: %d", rec.Code)
	}
}

func TestIdentityEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	admin := env.adminToken(t)
	groupID, _, _, _ := env.seedCatalog(t, admin)
	app, passphrase := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodGet, "/api/applications/identity?nonce=abc", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusOK {
		t.Fatalf("identity: %d %s", rec.Code, rec.Body.String())
	}
	var creds struct {
		PrivateKey  string `json:"private_key"`
		Certificate string `json:"certificate"`
	}
	decodeBody(t, rec, &creds)
	if creds.PrivateKey == "" || creds.Certificate == "" {
		t.Fatalf("credentials incomplete: %+v", creds)
	}
	cert, err := certs.CertFromPEM(creds.Certificate)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	wantCN := fmt.Sprintf("%d_abc", app.ID)
	if cert.Subject.CommonName != wantCN {
		t.Fatalf("CN = %q, want %q", cert.Subject.CommonName, wantCN)
	}
}

func TestIdentityEndpointUnprovisioned(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, _, _, _ := env.seedCatalog(t, admin)
	app, passphrase := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodGet, "/api/applications/identity?nonce=abc", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("identity without CA: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSignedPermissionsDocument(t *testing.T) {
	env := newTestEnv(t, true)
	admin := env.adminToken(t)
	groupID, _, _, _ := env.seedCatalog(t, admin)
	app, passphrase := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodGet, "/api/applications/permissions.xml.p7s?nonce=abc", "", withBasic(app.ID, passphrase))
	if rec.Code != http.StatusOK {
		t.Fatalf("signed document: %d %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "multipart/signed") || !strings.Contains(body, "smime.p7s") {
		t.Fatalf("unexpected signed payload:\n%s", body)
	}
}

func TestCAArtifacts(t *testing.T) {
	env := newTestEnv(t, true)
	admin := env.adminToken(t)

	rec := env.do(t, http.MethodGet, "/api/applications/identity_ca.pem", "", withBearer(admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("identity CA artifact: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "BEGIN CERTIFICATE") {
		t.Fatalf("artifact is not PEM:\n%s", rec.Body.String())
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("artifact must carry an ETag")
	}

	rec = env.do(t, http.MethodGet, "/api/applications/identity_ca.pem", "",
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+admin)
			r.Header.Set("If-None-Match", etag)
		})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("matching artifact etag: %d", rec.Code)
	}

	// Governance is never provisioned in this environment.
	rec = env.do(t, http.MethodGet, "/api/applications/governance.xml", "", withBearer(admin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("absent governance: %d", rec.Code)
	}
}

func TestTopicAccess(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)
	groupID, topicID, _, _ := env.seedCatalog(t, admin)
	app, _ := env.createApplication(t, admin, groupID, "sensor")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/topics/%d/access", topicID),
		fmt.Sprintf(`{"application_id":%d,"access":"read_write","read_partitions":["r*"]}`, app.ID),
		withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant access: %d %s", rec.Code, rec.Body.String())
	}
	var perm dds.ApplicationPermission
	decodeBody(t, rec, &perm)
	if perm.TopicID != topicID || perm.Access != dds.AccessReadWrite {
		t.Fatalf("permission = %+v", perm)
	}

	// One permission per application and topic.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/topics/%d/access", topicID),
		fmt.Sprintf(`{"application_id":%d,"access":"read"}`, app.ID), withBearer(admin))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate access: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPublicApplicationPermissions(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/api/groups", `{"name":"open","public":true}`, withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: %d %s", rec.Code, rec.Body.String())
	}
	var group dds.Group
	decodeBody(t, rec, &group)

	rec = env.do(t, http.MethodPost, "/api/topics",
		fmt.Sprintf(`{"group_id":%d,"kind":"B","name":"Telemetry"}`, group.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create topic: %d %s", rec.Code, rec.Body.String())
	}
	var topic dds.Topic
	decodeBody(t, rec, &topic)

	rec = env.do(t, http.MethodPost, "/api/applications",
		fmt.Sprintf(`{"group_id":%d,"name":"beacon","public":true}`, group.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create application: %d %s", rec.Code, rec.Body.String())
	}
	var created applicationCreatedResponse
	decodeBody(t, rec, &created)
	public := created.Application

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/topics/%d/access", topic.ID),
		fmt.Sprintf(`{"application_id":%d,"access":"read"}`, public.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant access: %d %s", rec.Code, rec.Body.String())
	}

	// A public application in a public group is readable without credentials.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d/permissions", public.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous read of public permissions: %d %s", rec.Code, rec.Body.String())
	}
	var perms []*dds.ApplicationPermission
	decodeBody(t, rec, &perms)
	if len(perms) != 1 || perms[0].ApplicationID != public.ID {
		t.Fatalf("permissions = %+v", perms)
	}

	// A private application stays invisible to anonymous callers.
	private, _ := env.createApplication(t, admin, group.ID, "vault")
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d/permissions", private.ID), "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous read of private permissions: %d %s", rec.Code, rec.Body.String())
	}

	// The flag alone is not enough; the owning group must also be public.
	rec = env.do(t, http.MethodPost, "/api/groups", `{"name":"closed"}`, withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: %d %s", rec.Code, rec.Body.String())
	}
	var closed dds.Group
	decodeBody(t, rec, &closed)
	rec = env.do(t, http.MethodPost, "/api/applications",
		fmt.Sprintf(`{"group_id":%d,"name":"beacon","public":true}`, closed.ID), withBearer(admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create application: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d/permissions", created.Application.ID), "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("public app in private group: %d %s", rec.Code, rec.Body.String())
	}

	// Other routes stay authenticated even for public applications.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d", public.ID), "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous application read: %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/healthz", "", func(r *http.Request) {
		r.Header.Set("X-Request-Id", "fixed-id")
	})
	if got := rec.Header().Get("X-Request-Id"); got != "fixed-id" {
		t.Fatalf("inbound request id must be echoed, got %q", got)
	}

	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("a request id must be generated when absent")
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	admin := env.adminToken(t)

	rec := env.do(t, http.MethodGet, "/api/nope", "", withBearer(admin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", rec.Code)
	}
}
