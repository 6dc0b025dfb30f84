// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure: in-memory fakes for
// the handler dependencies, request helpers, and the PostgreSQL and Valkey
// connections used by the integration tests, which are skipped when those
// services are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"certforge/internal/database"
	"certforge/internal/generate"
	"certforge/internal/middleware"
	"certforge/internal/models"
	"certforge/internal/session"
	"certforge/internal/store"
	"certforge/internal/tabular"
)

// fakeUsers is an in-memory UserRepo. Passwords are stored in clear text.
type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (f *fakeUsers) Create(ctx context.Context, email, password, name string) (*models.User, error) {
	if u, _ := f.FindByEmail(ctx, email); u != nil {
		return nil, store.ErrEmailTaken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: password, DisplayName: name}
	f.users[u.ID] = u
	c := *u
	return &c, nil
}

func (f *fakeUsers) CheckPassword(u *models.User, password string) bool {
	return u.PasswordHash == password
}

func (f *fakeUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].TOTPSecret = &secret
	f.users[id].TOTPEnabled = false
	return nil
}

func (f *fakeUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].TOTPEnabled = true
	return nil
}

func (f *fakeUsers) ResetTOTP(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].TOTPSecret = nil
	f.users[id].TOTPEnabled = false
	return nil
}

// fakeSessions records the session writes made by handlers.
type fakeSessions struct {
	created   []*session.Data
	updated   []*session.Data
	destroyed int
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	f.created = append(f.created, data)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "fake"})
	return "fake", nil
}

func (f *fakeSessions) Update(_ context.Context, _ *http.Request, data *session.Data) error {
	f.updated = append(f.updated, data)
	return nil
}

func (f *fakeSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	f.destroyed++
	return nil
}

// fakeTemplates is an in-memory TemplateRepo.
type fakeTemplates struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Template
	now  time.Time
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{
		rows: make(map[uuid.UUID]*models.Template),
		now:  time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTemplates) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeTemplates) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Template{}
	for _, t := range f.rows {
		if t.UserID == owner {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeTemplates) FindByIDForOwner(_ context.Context, id, owner uuid.UUID) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.rows[id]; ok && t.UserID == owner {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (f *fakeTemplates) Create(_ context.Context, owner uuid.UUID, name string, data json.RawMessage) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	t := &models.Template{ID: uuid.New(), UserID: owner, Name: name, Data: data, CreatedAt: now, UpdatedAt: now}
	f.rows[t.ID] = t
	c := *t
	return &c, nil
}

func (f *fakeTemplates) Update(_ context.Context, id, owner uuid.UUID, name string, data json.RawMessage) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != owner {
		return nil, nil
	}
	t.Name, t.Data, t.UpdatedAt = name, data, f.tick()
	c := *t
	return &c, nil
}

func (f *fakeTemplates) Delete(_ context.Context, id, owner uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.UserID != owner {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeTemplates) Count(ctx context.Context, owner uuid.UUID) (int, error) {
	list, err := f.ListByOwner(ctx, owner)
	return len(list), err
}

// fakeGenerations is an in-memory GenerationRepo.
type fakeGenerations struct {
	rows []models.Generation
}

func (f *fakeGenerations) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Generation, error) {
	out := []models.Generation{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == owner {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeGenerations) StatsByOwner(_ context.Context, owner uuid.UUID) (store.Stats, error) {
	var s store.Stats
	for _, g := range f.rows {
		if g.UserID == owner {
			s.Generations++
			s.Participants += g.ParticipantCount
		}
	}
	return s, nil
}

// fakeGenerator records requests and returns canned results.
type fakeGenerator struct {
	req     generate.Request
	result  *generate.Result
	err     error
	preview tabular.Record
}

func (f *fakeGenerator) Run(_ context.Context, req generate.Request) (*generate.Result, error) {
	f.req = req
	return f.result, f.err
}

func (f *fakeGenerator) Preview(_ context.Context, _, _ uuid.UUID, rec tabular.Record) ([]byte, error) {
	f.preview = rec
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 preview"), nil
}

// testSession creates a completed session for userID.
func testSession(userID uuid.UUID) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       "owner@example.com",
		DisplayName: "Test User",
		TwoFADone:   true,
	}
}

// jsonRequest builds a request with a JSON body and an optional session.
func jsonRequest(method, path string, body any, sess *session.Data) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if sess != nil {
		r = r.WithContext(middleware.WithSession(r.Context(), sess))
	}
	return r
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody decodes a JSON response body into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

// assertError checks the status and the {"error": msg} body.
func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if got := decodeBody(t, rec)["error"]; msg != "" && got != msg {
		t.Errorf("error = %v, want %q", got, msg)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "certforge")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "certforge")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if _, err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "session:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return client
}

// cleanUsers removes test users by email. Templates and generations cascade.
func cleanUsers(db *sql.DB, emails ...string) {
	for _, e := range emails {
		db.Exec("DELETE FROM users WHERE email = $1", e)
	}
}
