package profile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dvloznov/billflow/internal/domain"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	org, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if org.Currency != domain.DefaultCurrency || org.StorageProvider != domain.StorageBillflow {
		t.Errorf("default profile = %+v", org)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "organization.yaml")

	saved, err := Save(path, domain.Organization{
		Name:             "  Sharma Traders ",
		Currency:         "usd",
		BusinessKeywords: []string{"cement", " ", "steel"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.JoinedAt.IsZero() {
		t.Error("JoinedAt not stamped")
	}

	org, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if org.Name != "Sharma Traders" || org.Currency != "USD" || org.StorageProvider != domain.StorageBillflow {
		t.Errorf("loaded = %+v", org)
	}
	if len(org.BusinessKeywords) != 2 {
		t.Errorf("keywords = %v", org.BusinessKeywords)
	}
	if !org.JoinedAt.Equal(saved.JoinedAt) {
		t.Errorf("JoinedAt = %v, want %v", org.JoinedAt, saved.JoinedAt)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "org.yaml")

	tests := []struct {
		name string
		org  domain.Organization
	}{
		{"missing name", domain.Organization{Currency: "INR"}},
		{"bad currency", domain.Organization{Name: "X", Currency: "RUPEES"}},
		{"bad provider", domain.Organization{Name: "X", StorageProvider: "dropbox"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Save(path, tt.org); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Save err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("invalid profile was written")
	}
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "org.yaml")
	if err := os.WriteFile(path, []byte("name: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed yaml")
	}
}

func TestHolderUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "org.yaml")
	h, err := NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	if h.Get().Name != "My Business" {
		t.Errorf("initial profile = %+v", h.Get())
	}

	saved, err := h.Update(domain.Organization{Name: "Acme", Currency: "usd"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if saved.Currency != "USD" || saved.JoinedAt.IsZero() {
		t.Errorf("saved = %+v", saved)
	}

	reloaded, err := NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder reload: %v", err)
	}
	if got := reloaded.Get(); got.Name != "Acme" || !got.JoinedAt.Equal(saved.JoinedAt) {
		t.Errorf("reloaded = %+v", got)
	}
}

func TestHolderInMemoryRejectsInvalid(t *testing.T) {
	h, err := NewHolder("")
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	if _, err := h.Update(domain.Organization{Name: "  "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Update err = %v", err)
	}
	if h.Get().Name != "My Business" {
		t.Error("failed update changed the profile")
	}
}

func TestHolderCustomFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "org.yaml")
	h, err := NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}

	h.DefaultCustomFields([]string{"Project Code", " ", "Department"})
	if got := h.CustomFields(); !reflect.DeepEqual(got, []string{"Project Code", "Department"}) {
		t.Fatalf("default custom fields = %v", got)
	}

	// An update that does not carry the list keeps it.
	if _, err := h.Update(domain.Organization{Name: "Acme"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := h.CustomFields(); !reflect.DeepEqual(got, []string{"Project Code", "Department"}) {
		t.Errorf("custom fields after name update = %v", got)
	}

	saved, err := h.Update(domain.Organization{Name: "Acme", CustomFields: []string{" PO Number", "Cost Center", "PO Number", ""}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := []string{"PO Number", "Cost Center"}
	if !reflect.DeepEqual(saved.CustomFields, want) || !reflect.DeepEqual(h.CustomFields(), want) {
		t.Errorf("custom fields = %v / %v, want %v", saved.CustomFields, h.CustomFields(), want)
	}

	// The persisted list wins over the configured default on restart.
	reloaded, err := NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder reload: %v", err)
	}
	reloaded.DefaultCustomFields([]string{"Project Code"})
	if got := reloaded.CustomFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded custom fields = %v, want %v", got, want)
	}

	// Clearing the list is remembered, not replaced by the default.
	if _, err := reloaded.Update(domain.Organization{Name: "Acme", CustomFields: []string{}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	cleared, err := NewHolder(path)
	if err != nil {
		t.Fatalf("NewHolder reload: %v", err)
	}
	cleared.DefaultCustomFields([]string{"Project Code"})
	if got := cleared.CustomFields(); len(got) != 0 {
		t.Errorf("cleared custom fields = %v", got)
	}
}

func TestHolderGetCopiesCustomFields(t *testing.T) {
	h, err := NewHolder("")
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	h.DefaultCustomFields([]string{"Project Code"})

	org := h.Get()
	org.CustomFields[0] = "changed"
	if got := h.CustomFields(); got[0] != "Project Code" {
		t.Errorf("Get exposed internal state: %v", got)
	}
}
