// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUserRequires2FA(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	tests := []struct {
		name    string
		secret  *string
		enabled bool
		want    bool
	}{
		{name: "never enrolled", secret: nil, enabled: false, want: false},
		{name: "setup started", secret: &secret, enabled: false, want: false},
		{name: "enabled", secret: &secret, enabled: true, want: true},
		{name: "enabled without secret", secret: nil, enabled: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{TOTPSecret: tt.secret, TOTPEnabled: tt.enabled}
			if got := u.Requires2FA(); got != tt.want {
				t.Errorf("Requires2FA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	u := User{
		ID:           uuid.New(),
		Email:        "ani@example.com",
		PasswordHash: "$2a$10$hash",
		DisplayName:  "Ani",
		TOTPSecret:   &secret,
	}
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(b)
	for _, leaked := range []string{"$2a$10$hash", secret, "password"} {
		if strings.Contains(out, leaked) {
			t.Errorf("JSON leaks %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"name":"Ani"`) {
		t.Errorf("JSON missing display name: %s", out)
	}
}

func TestTemplateJSONKeepsRawData(t *testing.T) {
	tpl := Template{Name: "Sertifikat", Data: json.RawMessage(`{"components":[]}`)}
	b, err := json.Marshal(tpl)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"data":{"components":[]}`) {
		t.Errorf("data not embedded verbatim: %s", b)
	}
}
