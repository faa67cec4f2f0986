// Package config loads the execution engine's own configuration tree: wasm
// limits, system-contract gas pricing, and the top-level engine switches
// described in spec §6's "configuration surface". Structure and loading
// style mirror the teacher's own pkg/config/config.go (viper + mapstructure
// + godotenv), narrowed from a full node's network/consensus/storage config
// down to the execution CORE's own knobs.
//
// Version: v0.2.0
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"synnergy-core/engine"
	"synnergy-core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// WasmConfig mirrors engine.WasmConfig for file/env loading. OpcodeCosts and
// HostFunctionCosts are deliberately excluded from the file schema — they
// stay source-level defaults via engine.DefaultOpcodeCosts /
// DefaultHostFunctionCosts, since hand-tuning a single opcode's price from a
// YAML file is not a supported operation of this CLI.
type WasmConfig struct {
	MaxMemory         uint32 `mapstructure:"max_memory" json:"max_memory"`
	MaxStackHeight    uint32 `mapstructure:"max_stack_height" json:"max_stack_height"`
	MaxTableSize      uint32 `mapstructure:"max_table_size" json:"max_table_size"`
	BrTableMaxSize    uint32 `mapstructure:"br_table_max_size" json:"br_table_max_size"`
	MaxGlobals        uint32 `mapstructure:"max_globals" json:"max_globals"`
	MaxParameterCount uint32 `mapstructure:"max_parameter_count" json:"max_parameter_count"`
	ExecutionMode     string `mapstructure:"execution_mode" json:"execution_mode"`
}

// SystemConfig prices the one system-contract entry point worth exposing as
// a tunable (standard payment); mint/auction/handle_payment entry-point
// pricing stays at engine.DefaultSystemConfig's values.
type SystemConfig struct {
	StandardPaymentCost uint64 `mapstructure:"standard_payment_cost" json:"standard_payment_cost"`
}

// EngineSwitches mirrors the non-Wasm, non-System fields of
// engine.EngineConfig.
type EngineSwitches struct {
	MaxQueryDepth           uint32 `mapstructure:"max_query_depth" json:"max_query_depth"`
	StrictArgumentChecking  bool   `mapstructure:"strict_argument_checking" json:"strict_argument_checking"`
	MinimumDelegationAmount uint64 `mapstructure:"minimum_delegation_amount" json:"minimum_delegation_amount"`
	ChainKind               string `mapstructure:"chain_kind" json:"chain_kind"`
	FeeHandling             string `mapstructure:"fee_handling" json:"fee_handling"`
}

// Config is the unified configuration for one enginectl/executor process.
type Config struct {
	Wasm   WasmConfig     `mapstructure:"wasm" json:"wasm"`
	System SystemConfig   `mapstructure:"system" json:"system"`
	Engine EngineSwitches `mapstructure:"engine" json:"engine"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	// TrieStorePath is the bbolt file backing the persistent trie (spec §6's
	// "Persisted state" LMDB-equivalent store).
	TrieStorePath string `mapstructure:"trie_store_path" json:"trie_store_path"`
}

// AppConfig holds the configuration loaded via Load/LoadFromEnv.
var AppConfig Config

// Load reads engine.yaml-shaped configuration files and merges any
// environment-specific overrides, the same two-pass (default + named env)
// scheme the teacher's loader uses.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load engine config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal engine config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SYNN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SYNN_ENV", ""))
}

// LoadOptional behaves like LoadFromEnv but falls back to
// engine.DefaultEngineConfig's values (wrapped as a zero-valued Config) when
// no config file is present on disk — enginectl's default mode of operation
// with no cmd/config or config directory populated.
func LoadOptional() *Config {
	if _, err := os.Stat("cmd/config"); err != nil {
		if _, err := os.Stat("config"); err != nil {
			return &Config{}
		}
	}
	cfg, err := LoadFromEnv()
	if err != nil {
		return &Config{}
	}
	return cfg
}

// ToEngineConfig builds the engine.EngineConfig this file describes, seeded
// from engine.DefaultEngineConfig() so any field left at its zero value
// (including an entirely absent config file, via LoadOptional) keeps the
// engine's built-in default instead of a reconstructed-from-zero exec
// engine.
func (c *Config) ToEngineConfig() engine.EngineConfig {
	cfg := engine.DefaultEngineConfig()

	if c.Wasm.MaxMemory != 0 {
		cfg.Wasm.MaxMemory = c.Wasm.MaxMemory
	}
	if c.Wasm.MaxStackHeight != 0 {
		cfg.Wasm.MaxStackHeight = c.Wasm.MaxStackHeight
	}
	if c.Wasm.MaxTableSize != 0 {
		cfg.Wasm.MaxTableSize = c.Wasm.MaxTableSize
	}
	if c.Wasm.BrTableMaxSize != 0 {
		cfg.Wasm.BrTableMaxSize = c.Wasm.BrTableMaxSize
	}
	if c.Wasm.MaxGlobals != 0 {
		cfg.Wasm.MaxGlobals = c.Wasm.MaxGlobals
	}
	if c.Wasm.MaxParameterCount != 0 {
		cfg.Wasm.MaxParameterCount = c.Wasm.MaxParameterCount
	}
	switch c.Wasm.ExecutionMode {
	case "interpreted":
		cfg.Wasm.ExecutionMode = engine.Interpreted
	case "jit":
		cfg.Wasm.ExecutionMode = engine.JIT
	case "singlepass":
		cfg.Wasm.ExecutionMode = engine.Singlepass
	case "compiled":
		cfg.Wasm.ExecutionMode = engine.Compiled
	}

	if c.System.StandardPaymentCost != 0 {
		cfg.System.StandardPaymentCost = c.System.StandardPaymentCost
	}

	if c.Engine.MaxQueryDepth != 0 {
		cfg.MaxQueryDepth = c.Engine.MaxQueryDepth
	}
	if c.Engine.StrictArgumentChecking {
		cfg.StrictArgumentChecking = true
	}
	if c.Engine.MinimumDelegationAmount != 0 {
		cfg.MinimumDelegationAmount = c.Engine.MinimumDelegationAmount
	}
	switch c.Engine.ChainKind {
	case "private":
		cfg.ChainKind = engine.ChainPrivate
	case "public":
		cfg.ChainKind = engine.ChainPublic
	}
	switch c.Engine.FeeHandling {
	case "accumulate":
		cfg.FeeHandling = engine.Accumulate
	case "burn":
		cfg.FeeHandling = engine.Burn
	case "pay-to-proposer":
		cfg.FeeHandling = engine.PayToProposer
	}
	return cfg
}
