package bqexport

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/dvloznov/billflow/internal/domain"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := LoadMigrations(Migrations(), "proj", "books")
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}

	tables := []string{"`proj.books.receipts`", "`proj.books.receipt_line_items`"}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d version = %d", i, m.Version)
		}
		if !strings.Contains(m.SQL, tables[i]) {
			t.Errorf("migration %s does not create %s", m.Filename, tables[i])
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("migration %s has unsubstituted placeholders", m.Filename)
		}
		if len(m.Checksum) != 64 {
			t.Errorf("checksum = %q", m.Checksum)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name      string
		files     fstest.MapFS
		wantNames []string
		wantErr   error
	}{
		{
			name: "sorted by version and skips other files",
			files: fstest.MapFS{
				"0002_second.sql": {Data: []byte("SELECT 2")},
				"0001_first.sql":  {Data: []byte("SELECT 1")},
				"README.md":       {Data: []byte("notes")},
				"1_bad.sql":       {Data: []byte("SELECT 0")},
			},
			wantNames: []string{"first", "second"},
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"0001_a.sql": {Data: []byte("SELECT 1")},
				"0001_b.sql": {Data: []byte("SELECT 1")},
			},
			wantErr: domain.ErrConfiguration,
		},
		{
			name:  "empty directory",
			files: fstest.MapFS{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadMigrations(tt.files, "p", "d")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("got %d migrations, want %d", len(got), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if got[i].Name != name {
					t.Errorf("migration %d name = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestLoadMigrations_ChecksumIgnoresTarget(t *testing.T) {
	files := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (x INT64)")}}

	a, err := LoadMigrations(files, "p1", "d1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadMigrations(files, "p2", "d2")
	if err != nil {
		t.Fatal(err)
	}
	if a[0].Checksum != b[0].Checksum {
		t.Error("checksum depends on project and dataset")
	}
	if a[0].SQL == b[0].SQL {
		t.Error("placeholders not substituted")
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	got := Pending(all, applied)
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("Pending() = %+v, want version 2 only", got)
	}
	if got := Pending(all, nil); len(got) != 3 {
		t.Errorf("Pending() with nothing applied = %d migrations", len(got))
	}
}

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		name     string
	}{
		{"0001_create_receipts.sql", true, "create_receipts"},
		{"001_invalid.sql", false, ""},
		{"0001_test", false, ""},
		{"0001.sql", false, ""},
		{"invalid_0001_test.sql", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationFile.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if tt.valid && m[2] != tt.name {
				t.Errorf("name = %q, want %q", m[2], tt.name)
			}
		})
	}
}
