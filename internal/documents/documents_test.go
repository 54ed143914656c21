package documents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	data := []byte("%PDF-1.4")
	ref, err := m.Put(ctx, Object{Filename: "dir/bill.pdf", MIMEType: "application/pdf", Data: data})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref, "mem://") || Filename(ref) != "bill.pdf" {
		t.Errorf("ref = %q", ref)
	}

	data[0] = 'X'
	got, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Errorf("Get = %q; stored bytes aliased caller buffer", got)
	}

	if _, err := m.Get(ctx, "mem://missing/x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get missing err = %v", err)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, domain.StorageBillflow, "")
	if err != nil {
		t.Fatalf("New(billflow): %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("New(billflow) = %T, want *Memory", s)
	}

	if _, err := New(ctx, domain.StorageOneDrive, ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("New(onedrive) err = %v", err)
	}
	if _, err := New(ctx, domain.StorageGoogle, ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("New(google) without bucket err = %v", err)
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	name := ObjectName(now, `C:\scans\receipt.jpg`)
	if !strings.HasPrefix(name, "uploads/2024/03/07/") || !strings.HasSuffix(name, "-receipt.jpg") {
		t.Errorf("ObjectName = %q", name)
	}
}

func TestParseGSURI(t *testing.T) {
	tests := []struct {
		uri        string
		bucket     string
		object     string
		wantErrMsg bool
	}{
		{"gs://bills/uploads/a.pdf", "bills", "uploads/a.pdf", false},
		{"gs://bills", "", "", true},
		{"s3://bills/a.pdf", "", "", true},
	}
	for _, tt := range tests {
		bucket, object, err := ParseGSURI(tt.uri)
		if tt.wantErrMsg {
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("ParseGSURI(%q) err = %v", tt.uri, err)
			}
			continue
		}
		if err != nil || bucket != tt.bucket || object != tt.object {
			t.Errorf("ParseGSURI(%q) = %q, %q, %v", tt.uri, bucket, object, err)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("gs://bucket/folder/file.pdf"); got != "file.pdf" {
		t.Errorf("Filename = %q", got)
	}
}
