package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"recall/claims/internal/apperr"
	"recall/claims/internal/config"
	"recall/claims/internal/datatype"
	"recall/claims/internal/db"
)

func resetDiscovery(t *testing.T) {
	t.Helper()
	t.Setenv("CLAIMS_DB", "")
	t.Setenv("HOME", t.TempDir())
	oldPath, oldCfg := dbPath, cfg
	dbPath, cfg = "", nil
	t.Cleanup(func() { dbPath, cfg = oldPath, oldCfg })
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverDB_WalkUp(t *testing.T) {
	resetDiscovery(t)
	root := t.TempDir()
	want := filepath.Join(root, dbFileName)
	touch(t, want)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	got, err := DiscoverDB()
	if err != nil {
		t.Fatalf("DiscoverDB: %v", err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDiscoverDB_Priority(t *testing.T) {
	resetDiscovery(t)
	dir := t.TempDir()
	t.Chdir(dir)
	envDB := filepath.Join(dir, "env.db")
	flagDB := filepath.Join(dir, "flag.db")
	cfgDB := filepath.Join(dir, "cfg.db")
	for _, p := range []string{envDB, flagDB, cfgDB} {
		touch(t, p)
	}

	cfg = config.DefaultConfig()
	cfg.DBPath = cfgDB
	if got, _ := DiscoverDB(); got != cfgDB {
		t.Errorf("config path: got %q", got)
	}

	dbPath = flagDB
	if got, _ := DiscoverDB(); got != flagDB {
		t.Errorf("flag should beat config: got %q", got)
	}

	t.Setenv("CLAIMS_DB", envDB)
	if got, _ := DiscoverDB(); got != envDB {
		t.Errorf("env should beat flag: got %q", got)
	}
}

func TestDiscoverDB_Missing(t *testing.T) {
	resetDiscovery(t)
	t.Chdir(t.TempDir())

	if _, err := DiscoverDB(); err == nil {
		t.Fatal("expected an error when no database exists")
	}

	dbPath = filepath.Join(t.TempDir(), "nope.db")
	_, err := DiscoverDB()
	if err == nil || !strings.Contains(err.Error(), "--db") {
		t.Errorf("expected a --db error, got %v", err)
	}
}

func TestResolveClaim(t *testing.T) {
	ctx := context.Background()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "claims.db"), db.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	homer, err := d.CreateRoot(ctx, 0, "Homer Simpson")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateRoot(ctx, 0, "Homer Jay"); err != nil {
		t.Fatal(err)
	}
	bart, err := d.CreateRoot(ctx, 0, "Bart")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref     string
		want    int64
		wantErr bool
	}{
		{strconv.FormatInt(bart.ID, 10), bart.ID, false},
		{"homer   SIMPSON", homer.ID, false},
		{"Simpson", homer.ID, false},
		{"Homer", 0, true},
		{"Flanders", 0, true},
		{"404", 0, true},
	}
	for _, tt := range tests {
		c, err := ResolveClaim(ctx, d, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveClaim(%q): expected error, got %d", tt.ref, c.ID)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveClaim(%q): %v", tt.ref, err)
			continue
		}
		if c.ID != tt.want {
			t.Errorf("ResolveClaim(%q) = %d, want %d", tt.ref, c.ID, tt.want)
		}
	}

	if _, err := ResolveClaim(ctx, d, "Flanders"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("unknown name should be not_found, got %v", err)
	}
}

func TestResolveVerbs(t *testing.T) {
	ctx := context.Background()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "claims.db"), db.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	childOf, err := d.CreateVerb(ctx, db.VerbSpec{Label: "child of", DataType: datatype.DirectedLink})
	if err != nil {
		t.Fatal(err)
	}

	filter, err := resolveVerbs(ctx, d, "child of, -3")
	if err != nil {
		t.Fatal(err)
	}
	if len(filter) != 2 || filter[0] != childOf.ID || filter[1] != db.VerbCategory {
		t.Errorf("filter = %v", filter)
	}

	if filter, err := resolveVerbs(ctx, d, " "); err != nil || filter != nil {
		t.Errorf("blank list should be a nil filter, got %v, %v", filter, err)
	}
	if _, err := resolveVerbs(ctx, d, "parent of"); err == nil {
		t.Error("unknown label should fail")
	}
}
