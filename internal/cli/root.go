package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/config"
	"github.com/dbtai-dev/dbtai/internal/manifest"
)

const logo = `
    .______.    __       _____  .___
  __| _/\_ |___/  |_    /  _  \ |   |
 / __ |  | __ \   __\  /  /_\  \|   |
/ /_/ |  | \_\ \  |   /    |    \   |
\____ |  |___  /__|   \____|__  /___|
     \/      \/               \/
`

var errConstraintsNotImplemented = errors.New("constraints is not implemented yet")

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbtai",
		Short: "LLM assistance for dbt models",
		Long: `dbtai reads the compiled manifest of a dbt project and asks a language
model to document, test, explain, write, and fix models, grounded in
each model's SQL and the documentation of the models it selects from.

Run it from the root of a dbt project after dbt compile.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Log generation requests to stderr")
	rootCmd.PersistentFlags().String("manifest", manifest.DefaultPath, "Path to manifest.json, relative to the project root")

	// Generate Commands
	docCmd := &cobra.Command{
		Use:   "doc <model>",
		Short: "Generate documentation for a dbt model",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDoc,
	}
	docCmd.Flags().BoolP("write", "w", false, "Write the generated documentation to the model's .yml file")
	docCmd.Flags().BoolP("print", "p", false, "Also print the documentation when writing")

	unitCmd := &cobra.Command{
		Use:   "unit <model> [instructions]",
		Short: "Create a dbt unit test for a model",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunUnit,
	}
	unitCmd.Flags().BoolP("write", "w", false, "Append the generated test to the model's .yml file")

	generateCmd := &cobra.Command{
		Use:   "generate <model> <description>",
		Short: "Write a new model from a description",
		Args:  cobra.MinimumNArgs(2),
		RunE:  RunGenerate,
	}
	generateCmd.Flags().StringSliceP("input", "i", []string{}, "Upstream models to build on (repeatable)")
	generateCmd.Flags().BoolP("write", "w", false, "Write the model to a new .sql file")
	generateCmd.Flags().String("path", "", "Project-relative file for --write (default: models/<model>.sql)")

	fixCmd := &cobra.Command{
		Use:   "fix <model> <issue>",
		Short: "Change a model to address an issue",
		Args:  cobra.MinimumNArgs(2),
		RunE:  RunFix,
	}
	fixCmd.Flags().BoolP("write", "w", false, "Overwrite the model's .sql file with the fix")

	fluffCmd := &cobra.Command{
		Use:   "fluff <model>",
		Short: "Lint a model and have it rewritten for readability",
		Args:  cobra.ExactArgs(1),
		RunE:  RunFluff,
	}
	fluffCmd.Flags().Bool("no-rewrite", false, "Only lint; skip the rewrite request")
	fluffCmd.Flags().BoolP("write", "w", false, "Overwrite the model's .sql file with the result")

	explainCmd := &cobra.Command{
		Use:   "explain <model>",
		Short: "Explain what a model does",
		Args:  cobra.ExactArgs(1),
		RunE:  RunExplain,
	}

	chatCmd := &cobra.Command{
		Use:   "chat <model>",
		Short: "Chat about a model",
		Args:  cobra.ExactArgs(1),
		RunE:  RunChat,
	}

	constraintsCmd := &cobra.Command{
		Use:   "constraints",
		Short: "Write dbt constraints from a model's uniqueness tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errConstraintsNotImplemented
		},
	}

	// Inspect Commands
	columnsCmd := &cobra.Command{
		Use:   "columns <model>",
		Short: "List the columns selected by a model's final CTE",
		Args:  cobra.ExactArgs(1),
		RunE:  RunColumns,
	}
	columnsCmd.Flags().Bool("json", false, "Print machine-readable output")

	contextCmd := &cobra.Command{
		Use:   "context <model>",
		Short: "Show the context sent with generation requests",
		Args:  cobra.ExactArgs(1),
		RunE:  RunContext,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List models and sources in the manifest",
		Args:  cobra.NoArgs,
		RunE:  RunList,
	}
	listCmd.Flags().Bool("json", false, "Print machine-readable output")

	historyCmd := &cobra.Command{
		Use:   "history [model]",
		Short: "Show saved chats",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunHistory,
	}
	historyCmd.Flags().Bool("json", false, "Print machine-readable output")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find models by name, column, path, or description",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Bool("json", false, "Print machine-readable output")
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")

	lineageCmd := &cobra.Command{
		Use:   "lineage <model>",
		Short: "Show every model upstream or downstream of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  RunLineage,
	}
	lineageCmd.Flags().Bool("downstream", false, "Walk dependents instead of dependencies")
	lineageCmd.Flags().Int("depth", 0, "Stop after this many levels (0 walks everything)")
	lineageCmd.Flags().Bool("json", false, "Print machine-readable output")

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project, manifest, and settings",
		Args:  cobra.NoArgs,
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the manifest to MCP clients over stdio",
		Args:  cobra.NoArgs,
		RunE:  RunServe(version),
	}

	// Settings Commands
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure language, backend, and credentials",
		Args:  cobra.NoArgs,
		RunE:  RunSetup,
	}
	setupCmd.Flags().String("language", config.DefaultLanguage, "Output language (english, norwegian, chinese, spanish, french, german)")
	setupCmd.Flags().String("backend", string(config.BackendOpenAI), "LLM backend (OpenAI, Mistral, Gemini, Azure OpenAI)")
	setupCmd.Flags().String("api-key", "", "API key for the backend")
	setupCmd.Flags().String("model", "", "Model name for the selected backend")
	setupCmd.Flags().String("azure-endpoint", "", "Azure OpenAI endpoint")
	setupCmd.Flags().String("azure-model", "", "Azure OpenAI model")
	setupCmd.Flags().String("azure-deployment", "", "Azure OpenAI deployment")
	setupCmd.Flags().Int("timeout", config.DefaultTimeoutSeconds, "Request timeout in seconds")
	setupCmd.Flags().Int("max-attempts", config.DefaultMaxAttempts, "Attempts per request on network failures")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE:  RunShow,
	}

	// Additional Commands
	helloCmd := &cobra.Command{
		Use:   "hello",
		Short: "Show logo",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(logo + "\n")
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbtai %s\n", version)
		},
	}

	rootCmd.AddCommand(
		docCmd,
		unitCmd,
		generateCmd,
		fixCmd,
		fluffCmd,
		explainCmd,
		chatCmd,
		constraintsCmd,
		columnsCmd,
		contextCmd,
		listCmd,
		historyCmd,
		searchCmd,
		lineageCmd,
		doctorCmd,
		serveCmd,
		setupCmd,
		showCmd,
		helloCmd,
		versionCmd,
	)

	return rootCmd
}
