package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/config"
	"github.com/dbtai-dev/dbtai/internal/fileutil"
	"github.com/dbtai-dev/dbtai/internal/llm"
	"github.com/dbtai-dev/dbtai/internal/manifest"
	"github.com/dbtai-dev/dbtai/internal/prompt"
	"github.com/dbtai-dev/dbtai/internal/search"
)

// newClient is a package-level var to allow test injection.
var newClient = llm.New

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// project is everything a model command needs: the dbt project root, the
// user settings and the loaded manifest.
type project struct {
	root     string
	cfg      config.Config
	doc      *manifest.Document
	compiler *manifest.Compiler
	logger   *log.Logger
}

func loadConfig() (config.Config, string, error) {
	dir, err := config.Dir()
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, dir, nil
}

func loadProject(cmd *cobra.Command) (*project, error) {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(rootPath); err != nil {
		return nil, err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	manifestPath, err := OptionalStringFlag(cmd, "manifest")
	if err != nil {
		return nil, err
	}
	doc, err := manifest.Load(rootPath, manifestPath)
	if err != nil {
		return nil, err
	}
	compiler, err := manifest.NewCompiler(doc, manifest.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	logger, err := verboseLogger(cmd)
	if err != nil {
		return nil, err
	}
	return &project{root: rootPath, cfg: cfg, doc: doc, compiler: compiler, logger: logger}, nil
}

// verboseLogger returns nil unless --verbose is set.
func verboseLogger(cmd *cobra.Command) (*log.Logger, error) {
	verbose, err := OptionalBoolFlag(cmd, "verbose", false)
	if err != nil || !verbose {
		return nil, err
	}
	return log.New(os.Stderr, "dbtai: ", log.LstdFlags), nil
}

func (p *project) language() prompt.Language {
	return prompt.Language(p.cfg.Language)
}

// path joins a manifest-relative path onto the project root.
func (p *project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

// sourceOf returns the model's SQL as compiled into the manifest.
func (p *project) sourceOf(name string) (*manifest.Node, string, error) {
	node, err := p.doc.FindByName(name)
	if err != nil {
		return nil, "", p.withSuggestions(name, err)
	}
	code, err := node.SourceText()
	if err != nil {
		return nil, "", err
	}
	return node, code, nil
}

// withSuggestions names similarly spelled models when name is unknown.
func (p *project) withSuggestions(name string, err error) error {
	if !errors.Is(err, manifest.ErrNodeNotFound) {
		return err
	}
	similar := search.SimilarNames(search.Build(p.doc), name, 3)
	if len(similar) == 0 {
		return err
	}
	return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(similar, ", "))
}

// ask renders task, performs one generation round-trip and returns the raw
// reply text.
func (p *project) ask(ctx context.Context, task prompt.Task, fields prompt.Fields) (string, error) {
	messages, err := prompt.Render(task, p.language(), fields)
	if err != nil {
		return "", err
	}
	client, err := newClient(ctx, p.cfg, p.logger)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wait := newWaitReporter(client.Name())
	wait.Start()
	reply, err := client.Send(ctx, messages, prompt.Format(task))
	wait.Stop()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", task, err)
	}
	return reply, nil
}

// writeSourceFile replaces the model's SQL file with code.
func (p *project) writeSourceFile(name, code string) (string, error) {
	rel, err := p.doc.SourcePath(name)
	if err != nil {
		return "", err
	}
	path := p.path(rel)
	if _, err := fileutil.WriteIfChangedTracked(path, []byte(fileutil.EnsureTrailingNewline(code))); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return rel, nil
}

func printCode(w io.Writer, code, explanation string) {
	fmt.Fprint(w, fileutil.EnsureTrailingNewline(code))
	if explanation != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, fileutil.EnsureTrailingNewline(explanation))
	}
}
