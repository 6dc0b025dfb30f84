// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generate

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"certforge/internal/archive"
	"certforge/internal/layout"
	"certforge/internal/metrics"
	"certforge/internal/models"
	"certforge/internal/tabular"
)

const validDesign = `{
  "templateName": "Embedded Name",
  "components": [
    {"id": "name", "type": "text", "content": "{{nama}}", "style": {"position": {"x": 50, "y": 50}}}
  ]
}`

const participantsCSV = "Nama,Email\nBudi Santoso,budi@example.com\nAni,ani@example.com\nJoko,joko@example.com\n"

type fakeTemplates struct {
	byID map[uuid.UUID]*models.Template
	err  error
}

func (f *fakeTemplates) FindByIDForOwner(_ context.Context, id, owner uuid.UUID) (*models.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.byID[id]
	if !ok || t.UserID != owner {
		return nil, nil
	}
	return t, nil
}

type fakeGenerations struct {
	created []*models.Generation
	err     error
}

func (f *fakeGenerations) Create(_ context.Context, g *models.Generation) error {
	if f.err != nil {
		return f.err
	}
	g.ID = uuid.New()
	g.CreatedAt = time.Now()
	f.created = append(f.created, g)
	return nil
}

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobs) Upload(_ context.Context, key, contentType string, body io.Reader, size int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobs) FileURL(key string) string {
	return "https://s3.example.com/certificates/" + key
}

type fixture struct {
	owner       uuid.UUID
	templateID  uuid.UUID
	templates   *fakeTemplates
	generations *fakeGenerations
	blobs       *fakeBlobs
	metrics     *metrics.Metrics
	svc         *Service
}

var fixedNow = time.Date(2026, time.March, 7, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T, design string) *fixture {
	t.Helper()
	f := &fixture{
		owner:       uuid.New(),
		templateID:  uuid.New(),
		generations: &fakeGenerations{},
		blobs:       newFakeBlobs(),
		metrics:     metrics.New(),
	}
	f.templates = &fakeTemplates{byID: map[uuid.UUID]*models.Template{
		f.templateID: {ID: f.templateID, UserID: f.owner, Name: "Sertifikat Peserta", Data: json.RawMessage(design)},
	}}
	f.svc = New(Config{
		Templates:   f.templates,
		Generations: f.generations,
		Blobs:       f.blobs,
		Archive:     archive.Options{BatchSize: 2},
		Metrics:     f.metrics,
		Now:         func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) request() Request {
	return Request{
		OwnerID:      f.owner,
		TemplateID:   f.templateID,
		Name:         "Workshop Go #1",
		Filename:     "peserta.CSV",
		Data:         []byte(participantsCSV),
		Participants: 3,
	}
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, validDesign)

	res, err := f.svc.Run(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantFile := "Workshop_Go__1_1772879400000.zip"
	if res.FileName != wantFile {
		t.Errorf("FileName = %q, want %q", res.FileName, wantFile)
	}
	key := "certificates/" + f.owner.String() + "/" + wantFile
	data, ok := f.blobs.objects[key]
	if !ok {
		t.Fatalf("archive not uploaded at %q; have %v", key, f.blobs.objects)
	}
	if f.blobs.types[key] != "application/zip" {
		t.Errorf("content type = %q", f.blobs.types[key])
	}
	if res.DownloadURL != f.blobs.FileURL(key) {
		t.Errorf("DownloadURL = %q", res.DownloadURL)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("uploaded archive unreadable: %v", err)
	}
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	want := []string{
		"certificate_Budi_Santoso_1.pdf",
		"certificate_Ani_2.pdf",
		"certificate_Joko_3.pdf",
		archive.SummaryFile,
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("entries = %v, want %v", names, want)
	}

	if len(f.generations.created) != 1 {
		t.Fatalf("generations created = %d", len(f.generations.created))
	}
	gen := f.generations.created[0]
	if gen.Name != "Workshop Go #1" || gen.ParticipantCount != 3 || gen.FileURL != res.DownloadURL || gen.UserID != f.owner {
		t.Errorf("generation = %+v", gen)
	}

	wantSummary := Summary{
		TemplateName:     "Sertifikat Peserta",
		EventName:        "Workshop Go #1",
		ParticipantCount: 3,
		GeneratedAt:      fixedNow,
	}
	if res.Summary != wantSummary {
		t.Errorf("summary = %+v, want %+v", res.Summary, wantSummary)
	}
	if res.TotalCertificates != 3 || res.Succeeded != 3 || res.Failed != 0 {
		t.Errorf("totals = %d/%d/%d", res.TotalCertificates, res.Succeeded, res.Failed)
	}

	expected := `
# HELP certforge_generation_rows_total Participant rows processed by result.
# TYPE certforge_generation_rows_total counter
certforge_generation_rows_total{result="failed"} 0
certforge_generation_rows_total{result="ok"} 3
`
	if err := testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "certforge_generation_rows_total"); err != nil {
		t.Errorf("row metrics: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		design  string
		mutate  func(*fixture, *Request)
		wantIs  error
		wantAs  any
		outcome string
	}{
		{
			name:    "missing name",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.Name = "  " },
			wantAs:  new(*InputError),
			outcome: metrics.OutcomeInvalidInput,
		},
		{
			name:    "missing file",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.Data = nil },
			wantAs:  new(*InputError),
			outcome: metrics.OutcomeInvalidInput,
		},
		{
			name:    "foreign template",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.OwnerID = uuid.New() },
			wantIs:  ErrTemplateNotFound,
			outcome: metrics.OutcomeTemplateNotFound,
		},
		{
			name:    "unknown template",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.TemplateID = uuid.New() },
			wantIs:  ErrTemplateNotFound,
			outcome: metrics.OutcomeTemplateNotFound,
		},
		{
			name:    "unsupported file",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.Filename = "peserta.pdf" },
			wantIs:  tabular.ErrUnsupportedFormat,
			outcome: metrics.OutcomeInvalidInput,
		},
		{
			name:    "header only",
			design:  validDesign,
			mutate:  func(_ *fixture, r *Request) { r.Data = []byte("nama,email\n") },
			wantIs:  tabular.ErrEmptyDataset,
			outcome: metrics.OutcomeInvalidInput,
		},
		{
			name:    "malformed design",
			design:  `{"components": [`,
			wantAs:  new(*layout.InvalidTemplateError),
			outcome: metrics.OutcomeInvalidTemplate,
		},
		{
			name:    "design without components",
			design:  `{"components": []}`,
			wantAs:  new(*layout.InvalidTemplateError),
			outcome: metrics.OutcomeInvalidTemplate,
		},
		{
			name:    "upload failure",
			design:  validDesign,
			mutate:  func(f *fixture, _ *Request) { f.blobs.uploadErr = errors.New("503 slow down") },
			wantIs:  ErrUpload,
			outcome: metrics.OutcomeUploadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.design)
			req := f.request()
			if tt.mutate != nil {
				tt.mutate(f, &req)
			}

			res, err := f.svc.Run(context.Background(), req)
			if err == nil {
				t.Fatalf("Run succeeded: %+v", res)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want errors.Is %v", err, tt.wantIs)
			}
			switch target := tt.wantAs.(type) {
			case **InputError:
				if !errors.As(err, target) {
					t.Errorf("err = %T %v, want *InputError", err, err)
				}
			case **layout.InvalidTemplateError:
				if !errors.As(err, target) {
					t.Errorf("err = %T %v, want *layout.InvalidTemplateError", err, err)
				}
			}
			if got := outcome(err); got != tt.outcome {
				t.Errorf("outcome = %q, want %q", got, tt.outcome)
			}
			if len(f.generations.created) != 0 {
				t.Error("no generation should be recorded on failure")
			}
		})
	}
}

func TestRunWithoutStorage(t *testing.T) {
	f := newFixture(t, validDesign)
	svc := New(Config{Templates: f.templates, Generations: f.generations})
	if _, err := svc.Run(context.Background(), f.request()); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestRunRecordFailureRemovesArchive(t *testing.T) {
	f := newFixture(t, validDesign)
	f.generations.err = errors.New("connection reset")

	if _, err := f.svc.Run(context.Background(), f.request()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.blobs.objects) != 0 {
		t.Errorf("archive left behind: %v", f.blobs.objects)
	}
	if len(f.blobs.deleted) != 1 {
		t.Errorf("deleted = %v, want one key", f.blobs.deleted)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, validDesign)

	out, err := f.svc.Preview(context.Background(), f.owner, f.templateID, tabular.Record{"nama": "Ani"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("preview is not a PDF")
	}
	if len(f.blobs.objects) != 0 || len(f.generations.created) != 0 {
		t.Error("preview must not store anything")
	}

	if _, err := f.svc.Preview(context.Background(), uuid.New(), f.templateID, nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("foreign preview err = %v", err)
	}
}

func TestArchiveNameAndKey(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	tests := []struct{ name, want string }{
		{"Workshop Go", "Workshop_Go_1718000000000.zip"},
		{"Seminar: AI/ML 2026!", "Seminar__AI_ML_2026__1718000000000.zip"},
		{"v1.2-final_ok", "v1.2-final_ok_1718000000000.zip"},
	}
	for _, tt := range tests {
		if got := ArchiveName(tt.name, now); got != tt.want {
			t.Errorf("ArchiveName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	owner := uuid.MustParse("7f8e3b1c-2d4a-4c6e-9f10-1a2b3c4d5e6f")
	if got := ObjectKey(owner, "a.zip"); got != "certificates/7f8e3b1c-2d4a-4c6e-9f10-1a2b3c4d5e6f/a.zip" {
		t.Errorf("ObjectKey = %q", got)
	}
}
