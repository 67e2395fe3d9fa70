package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/fileutil"
	"github.com/dbtai-dev/dbtai/internal/manifest"
	"github.com/dbtai-dev/dbtai/internal/prompt"
	"github.com/dbtai-dev/dbtai/internal/result"
	"github.com/dbtai-dev/dbtai/internal/sqlparse"
)

const noRewriteExplanation = "Linted code, no rewrite"

func RunDoc(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	write, err := OptionalBoolFlag(cmd, "write", false)
	if err != nil {
		return err
	}
	printAlso, err := OptionalBoolFlag(cmd, "print", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	upstream, err := p.compiler.CompileMarkdown(name)
	if err != nil {
		return err
	}
	// Resolve the target before spending a request on it.
	var docPath string
	if write {
		if docPath, err = p.doc.DocPath(name); err != nil {
			return err
		}
	}

	reply, err := p.ask(commandContext(cmd), prompt.TaskGenerateDocs, prompt.Fields{
		prompt.FieldModelName:        name,
		prompt.FieldRawCode:          code,
		prompt.FieldModelDescription: upstream,
	})
	if err != nil {
		return err
	}
	docs, err := result.ParseDocs(reply)
	if err != nil {
		return err
	}
	text, err := result.FormatDocs(docs)
	if err != nil {
		return err
	}

	if !write {
		fmt.Print(text)
		return nil
	}
	if _, err := fileutil.WriteIfChangedTracked(p.path(docPath), []byte(text)); err != nil {
		return fmt.Errorf("failed to write %s: %w", docPath, err)
	}
	if printAlso {
		fmt.Print(text)
	}
	fmt.Fprintf(os.Stderr, "Documentation for %s written to %s\n", name, docPath)
	return nil
}

func RunUnit(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	instructions := ""
	if len(args) > 1 {
		instructions = strings.TrimSpace(strings.Join(args[1:], " "))
	}
	write, err := OptionalBoolFlag(cmd, "write", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	upstream, err := p.compiler.CompileMarkdown(name)
	if err != nil {
		return err
	}
	var docPath string
	if write {
		if docPath, err = p.doc.DocPath(name); err != nil {
			return err
		}
	}

	reply, err := p.ask(commandContext(cmd), prompt.TaskGenerateUnitTest, prompt.Fields{
		prompt.FieldModelName:         name,
		prompt.FieldRawCode:           code,
		prompt.FieldModelDescription:  upstream,
		prompt.FieldExtraInstructions: instructions,
	})
	if err != nil {
		return err
	}
	test, err := result.ParseUnitTest(reply)
	if err != nil {
		return err
	}

	if !write {
		printCode(os.Stdout, test.YAML, test.Explanation)
		return nil
	}
	if err := result.ValidateUnitTestYAML(test.YAML); err != nil {
		return err
	}
	block := "\n" + fileutil.EnsureTrailingNewline(test.YAML)
	if err := fileutil.AppendBlock(p.path(docPath), []byte(block)); err != nil {
		return fmt.Errorf("failed to append unit test to %s: %w", docPath, err)
	}
	fmt.Fprintf(os.Stderr, "Unit test for %s appended to %s\n", name, docPath)
	return nil
}

func RunGenerate(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	description := strings.TrimSpace(strings.Join(args[1:], " "))
	if description == "" {
		return fmt.Errorf("description is required")
	}
	inputs, err := OptionalStringSliceFlag(cmd, "input")
	if err != nil {
		return err
	}
	write, err := OptionalBoolFlag(cmd, "write", false)
	if err != nil {
		return err
	}
	target, err := OptionalStringFlag(cmd, "path")
	if err != nil {
		return err
	}
	if target == "" {
		target = filepath.Join("models", name+manifest.SourceExt)
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	fields := prompt.Fields{
		prompt.FieldModelName:   name,
		prompt.FieldDescription: description,
	}
	if inputs = fileutil.DedupeStrings(inputs); len(inputs) > 0 {
		upstream, err := p.compiler.CompileMarkdownFor(inputs)
		if err != nil {
			return err
		}
		fields[prompt.FieldUpstreamDocs] = upstream
	}

	reply, err := p.ask(commandContext(cmd), prompt.TaskGenerateModel, fields)
	if err != nil {
		return err
	}
	generated, err := result.ParseCode(prompt.TaskGenerateModel, reply)
	if err != nil {
		return err
	}

	if !write {
		printCode(os.Stdout, generated.Code, generated.Explanation)
		return nil
	}
	if _, err := os.Stat(p.path(target)); err == nil {
		return fmt.Errorf("refusing to overwrite existing model file %s", target)
	}
	if _, err := fileutil.WriteIfChangedTracked(p.path(target), []byte(fileutil.EnsureTrailingNewline(generated.Code))); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	fmt.Println(generated.Explanation)
	fmt.Fprintf(os.Stderr, "Model %s written to %s\n", name, target)
	return nil
}

func RunFix(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	issue := strings.TrimSpace(strings.Join(args[1:], " "))
	if issue == "" {
		return fmt.Errorf("issue description is required")
	}
	write, err := OptionalBoolFlag(cmd, "write", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	upstream, err := p.compiler.CompileMarkdown(name)
	if err != nil {
		return err
	}

	reply, err := p.ask(commandContext(cmd), prompt.TaskFixModel, prompt.Fields{
		prompt.FieldModelCode: code,
		prompt.FieldIssue:     issue,
		prompt.FieldTables:    upstream,
	})
	if err != nil {
		return err
	}
	fix, err := result.ParseFix(code, reply)
	if err != nil {
		return err
	}

	if fix.Diff == "" {
		fmt.Println("No changes proposed.")
	} else {
		fmt.Print(fix.Diff)
	}
	if fix.Explanation != "" {
		fmt.Println()
		fmt.Print(fileutil.EnsureTrailingNewline(fix.Explanation))
	}
	if !write {
		return nil
	}
	rel, err := p.writeSourceFile(name, fix.Code.Code)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Fixed %s written to %s\n", name, rel)
	return nil
}

func RunFluff(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	noRewrite, err := OptionalBoolFlag(cmd, "no-rewrite", false)
	if err != nil {
		return err
	}
	write, err := OptionalBoolFlag(cmd, "write", false)
	if err != nil {
		return err
	}

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}

	linted := result.Code{Code: sqlparse.Lint(code), Explanation: noRewriteExplanation}
	if !noRewrite {
		reply, err := p.ask(commandContext(cmd), prompt.TaskLintAndExplain, prompt.Fields{
			prompt.FieldModelCode: linted.Code,
		})
		if err != nil {
			return err
		}
		if linted, err = result.ParseCode(prompt.TaskLintAndExplain, reply); err != nil {
			return err
		}
	}

	printCode(os.Stdout, linted.Code, linted.Explanation)
	if !write {
		return nil
	}
	rel, err := p.writeSourceFile(name, linted.Code)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Linted %s written to %s\n", name, rel)
	return nil
}

func RunExplain(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	fields, err := p.modelFields(name, code)
	if err != nil {
		return err
	}

	reply, err := p.ask(commandContext(cmd), prompt.TaskExplain, fields)
	if err != nil {
		return err
	}
	fmt.Print(fileutil.EnsureTrailingNewline(result.Explain(reply)))
	return nil
}

// modelFields are the fields shared by explain and the chat system prompt:
// the model itself plus its direct upstream context.
func (p *project) modelFields(name, code string) (prompt.Fields, error) {
	self, err := p.compiler.DescribeSelf(name)
	if err != nil {
		return nil, err
	}
	upstream, err := p.compiler.CompileMarkdown(name)
	if err != nil {
		return nil, err
	}
	if upstream == "" {
		upstream = prompt.NoUpstreamModels
	}
	return prompt.Fields{
		prompt.FieldModelName:        name,
		prompt.FieldRawCode:          code,
		prompt.FieldUpstreamModels:   upstream,
		prompt.FieldModelDescription: self,
	}, nil
}
