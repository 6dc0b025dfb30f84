// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"certforge/internal/models"
	"certforge/internal/session"
	"certforge/internal/store"
)

// TestIntegrationAccountAndTemplates runs register, login and template
// CRUD against PostgreSQL and Valkey.
func TestIntegrationAccountAndTemplates(t *testing.T) {
	db := testDB(t)
	vk := testValkeyClient(t)
	const email = "handler-integration@example.com"
	cleanUsers(db, email)
	t.Cleanup(func() { cleanUsers(db, email) })

	sessions := session.NewStore(vk, false, time.Hour)
	auth := NewAuth(store.NewUserStore(db), sessions)
	templates := NewTemplates(store.NewTemplateStore(db), &fakeGenerator{})
	ctx := context.Background()

	rec := httptest.NewRecorder()
	auth.Register(rec, jsonRequest("POST", "/api/auth/register", map[string]string{
		"email": email, "password": "secret123", "name": "Integration",
	}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	auth.Register(rec, jsonRequest("POST", "/api/auth/register", map[string]string{
		"email": email, "password": "secret123",
	}, nil))
	assertError(t, rec, http.StatusBadRequest, "User exists")

	rec = httptest.NewRecorder()
	auth.Login(rec, jsonRequest("POST", "/api/auth/login", map[string]string{
		"email": email, "password": "secret123",
	}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no cookie")
	}
	lookup := httptest.NewRequest("GET", "/", nil)
	lookup.AddCookie(cookies[0])
	sess, err := sessions.Get(ctx, lookup)
	if err != nil || sess == nil || !sess.TwoFADone {
		t.Fatalf("session = %+v, err %v", sess, err)
	}

	rec = httptest.NewRecorder()
	templates.Create(rec, jsonRequest("POST", "/api/templates", map[string]any{
		"name": "Integration Template",
		"data": json.RawMessage(designJSON),
	}, sess))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Template
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = httptest.NewRecorder()
	templates.Update(rec, withChiURLParam(jsonRequest("PUT", "/api/templates/x",
		map[string]string{"name": "Renamed"}, sess), "id", created.ID.String()))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	templates.List(rec, jsonRequest("GET", "/api/templates", nil, sess))
	var list []models.Template
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Name != "Renamed" {
		t.Errorf("list = %+v", list)
	}

	rec = httptest.NewRecorder()
	logout := jsonRequest("POST", "/api/auth/logout", nil, sess)
	logout.AddCookie(cookies[0])
	auth.Logout(rec, logout)
	if gone, _ := sessions.Get(ctx, lookup); gone != nil {
		t.Error("session should be destroyed after logout")
	}
}
