package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"gopkg.in/yaml.v3"
)

// Default is the profile used before onboarding.
func Default() domain.Organization {
	return domain.Organization{
		Name:            "My Business",
		Currency:        domain.DefaultCurrency,
		StorageProvider: domain.StorageBillflow,
	}
}

// Load reads the organization profile at path. A missing file yields Default.
func Load(path string) (domain.Organization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return domain.Organization{}, fmt.Errorf("profile: read %s: %w", path, err)
	}

	var org domain.Organization
	if err := yaml.Unmarshal(data, &org); err != nil {
		return domain.Organization{}, fmt.Errorf("profile: parse %s: %w", path, err)
	}

	normalize(&org)
	if err := Validate(org); err != nil {
		return domain.Organization{}, fmt.Errorf("profile: %s: %w", path, err)
	}
	return org, nil
}

// Save validates org and writes it to path, creating parent directories.
func Save(path string, org domain.Organization) (domain.Organization, error) {
	normalize(&org)
	if org.JoinedAt.IsZero() {
		org.JoinedAt = time.Now().UTC().Truncate(time.Second)
	}
	if err := Validate(org); err != nil {
		return domain.Organization{}, fmt.Errorf("profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.Organization{}, fmt.Errorf("profile: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(org)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("profile: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.Organization{}, fmt.Errorf("profile: write %s: %w", path, err)
	}
	return org, nil
}

// Validate checks the fields the rest of the system relies on.
func Validate(org domain.Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return fmt.Errorf("%w: organization name is required", domain.ErrInvalidInput)
	}
	if len(org.Currency) != 3 {
		return fmt.Errorf("%w: currency %q is not a 3-letter code", domain.ErrInvalidInput, org.Currency)
	}
	switch org.StorageProvider {
	case domain.StorageBillflow, domain.StorageGoogle, domain.StorageOneDrive:
	default:
		return fmt.Errorf("%w: unknown storage provider %q", domain.ErrInvalidInput, org.StorageProvider)
	}
	return nil
}

func normalize(org *domain.Organization) {
	org.Name = strings.TrimSpace(org.Name)
	org.Currency = strings.ToUpper(strings.TrimSpace(org.Currency))
	if org.Currency == "" {
		org.Currency = domain.DefaultCurrency
	}
	if org.StorageProvider == "" {
		org.StorageProvider = domain.StorageBillflow
	}
	org.StorageProvider = domain.StorageProvider(strings.ToLower(string(org.StorageProvider)))

	keywords := org.BusinessKeywords[:0:0]
	for _, k := range org.BusinessKeywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	org.BusinessKeywords = keywords

	org.CustomFields = normalizeFieldNames(org.CustomFields)
}

// normalizeFieldNames trims names and drops blanks and repeats, keeping
// the first occurrence. A nil list stays nil.
func normalizeFieldNames(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func copyFieldNames(names []string) []string {
	if names == nil {
		return nil
	}
	return append([]string{}, names...)
}

// Holder is the process-wide organization profile, backed by a file when
// path is set.
type Holder struct {
	mu   sync.RWMutex
	path string
	org  domain.Organization
}

// NewHolder loads the profile at path. An empty path keeps the profile in
// memory only.
func NewHolder(path string) (*Holder, error) {
	org := Default()
	if path != "" {
		var err error
		if org, err = Load(path); err != nil {
			return nil, err
		}
	}
	return &Holder{path: path, org: org}, nil
}

// Get returns the current profile.
func (h *Holder) Get() domain.Organization {
	h.mu.RLock()
	defer h.mu.RUnlock()
	org := h.org
	org.BusinessKeywords = append([]string(nil), h.org.BusinessKeywords...)
	org.CustomFields = copyFieldNames(h.org.CustomFields)
	return org
}

// CustomFields returns the extra extraction field names of the current
// profile.
func (h *Holder) CustomFields() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.org.CustomFields...)
}

// DefaultCustomFields sets the field names used while the profile has never
// set its own list. The default is not written to the profile file.
func (h *Holder) DefaultCustomFields(names []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.org.CustomFields != nil {
		return
	}
	h.org.CustomFields = normalizeFieldNames(append([]string{}, names...))
}

// Update validates and stores org. JoinedAt and CustomFields are kept from
// the current profile when org does not carry them.
func (h *Holder) Update(org domain.Organization) (domain.Organization, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if org.JoinedAt.IsZero() {
		org.JoinedAt = h.org.JoinedAt
	}

	if h.path == "" {
		normalize(&org)
		if org.JoinedAt.IsZero() {
			org.JoinedAt = time.Now().UTC().Truncate(time.Second)
		}
		if err := Validate(org); err != nil {
			return domain.Organization{}, fmt.Errorf("profile: %w", err)
		}
		h.org = org
		return org, nil
	}

	saved, err := Save(h.path, org)
	if err != nil {
		return domain.Organization{}, err
	}
	h.org = saved
	return saved, nil
}
