package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
	Long: `Show or change the settings in config.toml.

Environment variables (GHD_*, ANTHROPIC_API_KEY, OPENAI_API_KEY,
GITHUB_TOKEN, GITHUB_REPOSITORY and a .env file in the working
directory) override the file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a value in config.toml",
	Long: `Set a value in config.toml. Keys use section.name notation.

Examples:
  github-delivery config set llm.provider ollama
  github-delivery config set vector.provider qdrant
  github-delivery config set pipeline.call_timeout 90s`,
	Args: exactArgs(2),
	RunE: runConfigSet,
}

var configPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the prompt files and whether they were edited",
	Long: `List the prompt files under the configuration directory. Missing files
are created from the built-in defaults first. Edit a file to change how
questions are planned or answered; "mcp serve" picks up edits without a
restart.`,
	Args: cobra.NoArgs,
	RunE: runConfigPrompts,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPromptsCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	r := newRenderer(cmd.OutOrStdout())
	r.printf("%s %s\n\n", r.paint(r.label, "file:"), configStore.Path())
	for _, e := range appConfig.Entries() {
		value := e[1]
		if value == "" {
			value = r.paint(r.muted, "(unset)")
		}
		r.printf("  %-30s %s\n", e[0], value)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	value, err := file.ParseValue(key, raw)
	if err != nil {
		return asUsageError(err)
	}

	if configStore == nil {
		dir, err := configDirectory()
		if err != nil {
			return asUsageError(err)
		}
		store, err := file.NewConfigStore(dir)
		if err != nil {
			return asUsageError(fmt.Errorf("open config: %w", err))
		}
		configStore = store
	}

	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	// Catch values that parse but make the whole configuration unusable.
	appConfig = nil
	if err := loadConfig(); err != nil {
		var usage *usageError
		if errors.As(err, &usage) || errors.Is(err, file.ErrInvalidConfig) {
			cmd.Printf("Saved %s, but the configuration is now invalid: %v\n", key, err)
			return nil
		}
		return err
	}

	cmd.Printf("Set %s in %s\n", key, configStore.Path())
	return nil
}

func runConfigPrompts(cmd *cobra.Command, _ []string) error {
	store, err := openPrompts()
	if err != nil {
		return err
	}

	r := newRenderer(cmd.OutOrStdout())
	r.printf("%s %s\n\n", r.paint(r.label, "dir:"), store.Dir())
	for _, name := range file.PromptNames() {
		text, err := store.Load(name)
		if err != nil {
			return err
		}
		status := r.paint(r.muted, "default")
		if def, _ := file.DefaultPrompt(name); text != strings.TrimSpace(def) {
			status = r.paint(r.label, "edited")
		}
		r.printf("  %-20s %s\n", name+".txt", status)
	}
	return nil
}
