package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// createNow is swapped in tests to pin migration versions.
var createNow = time.Now

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s: ledger rows are append-only, prefer additive changes.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql and returns its
// path. An empty dir means DefaultDir. Names already used by another
// migration are rejected, and a version taken within the same second is
// bumped forward so goose ordering stays strict.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return "", fmt.Errorf("list %q: %w", dir, err)
	}
	versions := make(map[string]bool, len(existing))
	for _, path := range existing {
		base := filepath.Base(path)
		version, rest, ok := strings.Cut(strings.TrimSuffix(base, ".sql"), "_")
		if !ok {
			continue
		}
		if rest == safe {
			return "", fmt.Errorf("migration %q already exists as %s", safe, base)
		}
		versions[version] = true
	}

	at := createNow().UTC()
	for versions[at.Format(versionLayout)] {
		at = at.Add(time.Second)
	}
	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.Format(versionLayout), safe))

	if err := os.WriteFile(fullpath, []byte(fmt.Sprintf(sqlTemplate, safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}
