// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage (config.toml)
//   - PromptStore: user-editable prompt templates with embedded defaults
//
// Config merges defaults, config.toml and the environment into the typed
// runtime configuration. LoadPricing reads the model pricing table.
package file
