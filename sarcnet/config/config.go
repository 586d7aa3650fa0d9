package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/tapon22bce/sarcnet/sarcnet"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Branches BranchesConfig `mapstructure:"branches"`
	Training TrainingConfig `mapstructure:"training"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DatasetConfig locates the labelled corpus and controls the split.
type DatasetConfig struct {
	Path         string  `mapstructure:"path"`
	TextColumn   string  `mapstructure:"textColumn"`
	LabelColumn  string  `mapstructure:"labelColumn"`
	TestFraction float64 `mapstructure:"testFraction"`
	Seed         int64   `mapstructure:"seed"`
}

// BranchConfig stores one encoder branch's provider and model locations.
type BranchConfig struct {
	Provider      string `mapstructure:"provider"` // "hash" or "onnx"
	ModelPath     string `mapstructure:"modelPath"`
	TokenizerPath string `mapstructure:"tokenizerPath"`
	Width         int    `mapstructure:"width"`
}

// BranchesConfig stores both encoder branches. A is the pooled-output family,
// B is the first-token family; the order is load-bearing for fusion.
type BranchesConfig struct {
	A BranchConfig `mapstructure:"a"`
	B BranchConfig `mapstructure:"b"`
}

// TrainingConfig stores hyperparameters for both training stages.
type TrainingConfig struct {
	MaxSeqLen          int     `mapstructure:"maxSeqLen"`
	Epochs             int     `mapstructure:"epochs"`
	BatchSize          int     `mapstructure:"batchSize"`
	ExtractBatchSize   int     `mapstructure:"extractBatchSize"`
	LearningRate       float64 `mapstructure:"learningRate"`
	LRFactor           float64 `mapstructure:"lrFactor"`
	LRPatience         int     `mapstructure:"lrPatience"`
	MinLR              float64 `mapstructure:"minLR"`
	StopPatience       int     `mapstructure:"stopPatience"`
	ValidationFraction float64 `mapstructure:"validationFraction"`
	Seed               int64   `mapstructure:"seed"`
	ClassifierMaxIter  int     `mapstructure:"classifierMaxIter"`
	ClassifierTol      float64 `mapstructure:"classifierTol"`
	ClassifierSeed     int64   `mapstructure:"classifierSeed"`
}

// StoreConfig stores run-store connection details.
type StoreConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
}

// ServerConfig stores demo server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("dataset.path", "data/comments.csv")
	viper.SetDefault("dataset.textColumn", "comment")
	viper.SetDefault("dataset.labelColumn", "label")
	viper.SetDefault("dataset.testFraction", 0.2)
	viper.SetDefault("dataset.seed", 42)

	viper.SetDefault("branches.a.provider", "hash")
	viper.SetDefault("branches.a.width", 64)
	viper.SetDefault("branches.b.provider", "hash")
	viper.SetDefault("branches.b.width", 64)

	viper.SetDefault("training.maxSeqLen", 64)
	viper.SetDefault("training.epochs", 5)
	viper.SetDefault("training.batchSize", 16)
	viper.SetDefault("training.extractBatchSize", 32)
	viper.SetDefault("training.learningRate", 1e-3)
	viper.SetDefault("training.lrFactor", 0.5)
	viper.SetDefault("training.lrPatience", 1)
	viper.SetDefault("training.minLR", 1e-6)
	viper.SetDefault("training.stopPatience", 2)
	viper.SetDefault("training.validationFraction", 0.1)
	viper.SetDefault("training.seed", 1337)
	viper.SetDefault("training.classifierMaxIter", 300)
	viper.SetDefault("training.classifierTol", 1e-4)
	viper.SetDefault("training.classifierSeed", 42)

	viper.SetDefault("store.dsn", internal.DefaultRunDBPath)
	viper.SetDefault("store.type", internal.DefaultDatabaseType)

	viper.SetDefault("server.addr", ":8080")

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. training.maxSeqLen becomes TRAINING_MAXSEQLEN

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
