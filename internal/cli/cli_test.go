package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/papertrail/internal/cache"
	"github.com/ppiankov/papertrail/internal/model"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.json")
	claims := []model.Claim{
		{ID: "c1", Text: "A", Status: model.StatusUncited},
		{ID: "c2", Text: "B", Status: model.StatusCited, Verdict: model.VerdictSupported, Confidence: model.Float64(0.9)},
	}

	if err := writeSnapshot(path, "job-1", claims); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}

	got, err := readClaims(path)
	if err != nil {
		t.Fatalf("readClaims: %v", err)
	}
	if !reflect.DeepEqual(got, claims) {
		t.Errorf("got %+v, want %+v", got, claims)
	}
	if job := readSnapshotJob(path); job != "job-1" {
		t.Errorf("unexpected job %q", job)
	}
}

func TestReadClaims_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readClaims(path); err == nil {
		t.Error("expected parse error")
	}
	if job := readSnapshotJob(path); job != "" {
		t.Errorf("expected no job, got %q", job)
	}
}

func TestSelectClaims(t *testing.T) {
	claims := []model.Claim{
		{ID: "c1", Status: model.StatusUncited},
		{ID: "c2", Status: model.StatusCited},
		{ID: "c3", Status: model.StatusWeaklyCited},
	}
	needs := func(c model.Claim) bool { return c.Status.NeedsCitation() }

	ids, err := selectClaims(claims, nil, "", needs)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c1", "c3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("got %v, want %v", ids, want)
	}

	file := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(file, []byte("c9\n# skip\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ids, err = selectClaims(claims, []string{"c2"}, file, needs)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c2", "c9"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("explicit ids must win, got %v", ids)
	}
}

func TestClaimLine(t *testing.T) {
	line := claimLine(model.Claim{ID: "c7", Status: model.StatusUncited, Verdict: model.VerdictUnsupported, Confidence: model.Float64(0.2)})
	for _, part := range []string{"Uncited", "Unsupported", "c7", "(20%)"} {
		if !strings.Contains(line, part) {
			t.Errorf("line %q missing %q", line, part)
		}
	}
}

func TestLoadConfig_Env(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PAPERTRAIL_API_BASE_URL", "https://papertrail.example.com")
	t.Setenv("PAPERTRAIL_CONCURRENCY_VERIFY_WORKERS", "9")
	t.Setenv("PAPERTRAIL_SUGGEST_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	viper.SetEnvPrefix("PAPERTRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(model.DefaultConfig())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://papertrail.example.com" {
		t.Errorf("unexpected base URL %s", cfg.API.BaseURL)
	}
	if cfg.Concurrency.VerifyWorkers != 9 {
		t.Errorf("unexpected workers %d", cfg.Concurrency.VerifyWorkers)
	}
	if cfg.Suggest.APIKey != "sk-test" {
		t.Errorf("provider key not taken from OPENAI_API_KEY")
	}
	if cfg.API.Version != "/api/v1" {
		t.Errorf("defaults lost: %+v", cfg.API)
	}
}

func TestLoadConfig_RejectsBadBaseURL(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setDefaults(model.DefaultConfig())
	viper.Set("api.base_url", "localhost:8000")

	if _, err := loadConfig(); err == nil {
		t.Error("expected validation error")
	}
}

func TestOpenSuggestCache_PrunesExpired(t *testing.T) {
	dir := t.TempDir()
	disk := cache.NewDiskCache(dir, time.Hour)
	_ = disk.Set("old", []byte("a"), time.Millisecond)
	_ = disk.Set("fresh", []byte("b"), time.Hour)
	time.Sleep(10 * time.Millisecond)

	c := openSuggestCache(time.Hour, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected only the fresh entry on disk, found %d files", len(files))
	}
	if got, ok := c.Get("fresh"); !ok || string(got) != "b" {
		t.Errorf("fresh entry lost: %q %v", got, ok)
	}
}
