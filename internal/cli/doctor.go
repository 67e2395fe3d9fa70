package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/config"
	"github.com/dbtai-dev/dbtai/internal/fileutil"
	"github.com/dbtai-dev/dbtai/internal/graph"
	"github.com/dbtai-dev/dbtai/internal/manifest"
	"github.com/dbtai-dev/dbtai/internal/prompt"
)

type DoctorSummary struct {
	Mode        string   `json:"mode"`
	RootPath    string   `json:"root_path"`
	ConfigPath  string   `json:"config_path"`
	Healthy     bool     `json:"healthy"`
	Project     bool     `json:"project"`
	Manifest    string   `json:"manifest,omitempty"`
	Nodes       int      `json:"nodes"`
	Dangling    []string `json:"dangling,omitempty"`
	Language    string   `json:"language"`
	Backend     string   `json:"backend"`
	Model       string   `json:"model,omitempty"`
	APIKey      bool     `json:"api_key"`
	Missing     []string `json:"missing,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// RunDoctor checks everything a generation command needs without sending
// a request.
func RunDoctor(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	manifestPath, err := OptionalStringFlag(cmd, "manifest")
	if err != nil {
		return err
	}
	if err := config.LoadEnv(rootPath); err != nil {
		return err
	}

	summary := DoctorSummary{Mode: "doctor", RootPath: rootPath}

	cfg, dir, err := loadConfig()
	if err != nil {
		summary.Missing = append(summary.Missing, "valid config file")
		summary.Suggestions = append(summary.Suggestions, "run dbtai setup")
		cfg = config.Default()
	}
	summary.ConfigPath = filepath.Join(dir, config.ConfigFile)
	summary.Language = cfg.Language
	summary.Backend = string(cfg.Backend)
	summary.Model = cfg.ModelName()
	summary.APIKey = cfg.ResolveAPIKey() != ""

	if _, err := prompt.ParseLanguage(cfg.Language); err != nil {
		summary.Missing = append(summary.Missing, "supported language")
		summary.Suggestions = append(summary.Suggestions, "run dbtai setup --language english")
	}
	if cfg.Backend == config.BackendAzureOpenAI {
		summary.Missing = append(summary.Missing, "implemented backend")
		summary.Suggestions = append(summary.Suggestions, "run dbtai setup --backend OpenAI")
	}
	if !summary.APIKey {
		summary.Missing = append(summary.Missing, "API key")
		summary.Suggestions = append(summary.Suggestions, "run dbtai setup --api-key <key> or add it to .env")
	}

	doc, err := manifest.Load(rootPath, manifestPath)
	switch {
	case errors.Is(err, manifest.ErrNotAProjectDirectory):
		summary.Missing = append(summary.Missing, manifest.ProjectFile)
		summary.Suggestions = append(summary.Suggestions, "run dbtai from the root of a dbt project")
	case errors.Is(err, manifest.ErrManifestNotFound):
		summary.Project = true
		summary.Missing = append(summary.Missing, "manifest")
		summary.Suggestions = append(summary.Suggestions, "run dbt compile")
	case err != nil:
		summary.Project = true
		summary.Missing = append(summary.Missing, "valid manifest")
		summary.Suggestions = append(summary.Suggestions, "run dbt compile")
	default:
		summary.Project = true
		summary.Manifest = manifestPath
		if summary.Manifest == "" {
			summary.Manifest = manifest.DefaultPath
		}
		summary.Nodes = doc.Len()
		for _, edge := range graph.Build(doc).Dangling() {
			summary.Dangling = append(summary.Dangling, edge.From+" -> "+edge.To)
		}
		if len(summary.Dangling) > 0 {
			summary.Missing = append(summary.Missing, "complete dependency graph")
			summary.Suggestions = append(summary.Suggestions, "run dbt compile")
		}
	}

	summary.Missing = fileutil.DedupeStrings(summary.Missing)
	sort.Strings(summary.Missing)
	summary.Suggestions = fileutil.DedupeStrings(summary.Suggestions)
	sort.Strings(summary.Suggestions)
	summary.Healthy = len(summary.Missing) == 0

	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Printf("doctor: %s\n", status)
	fmt.Printf("project: dbt_project=%t manifest=%s nodes=%d\n", summary.Project, orNone(summary.Manifest), summary.Nodes)
	fmt.Printf("config: %s language=%s backend=%s model=%s api_key=%t\n",
		summary.ConfigPath, summary.Language, summary.Backend, orNone(summary.Model), summary.APIKey)
	if len(summary.Dangling) > 0 {
		fmt.Printf("dangling dependencies (%d): %s\n", len(summary.Dangling), strings.Join(summary.Dangling, ", "))
	}
	if len(summary.Missing) > 0 {
		fmt.Printf("missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("next: %s\n", suggestion)
	}
	if !summary.Healthy {
		fmt.Fprintln(os.Stderr, "dbtai is not ready to generate; see the next steps above")
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
