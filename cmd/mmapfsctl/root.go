// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/mmapfs/mmapfs/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	conf          cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "mmapfsctl <command> [args]",
	Short: "Inspect and manipulate a single-file mmapfs backing store",
	Long: `mmapfsctl is a one-shot command line client for mmapfs, a
single-file, memory-mapped, hierarchical filesystem. Every invocation
opens the store named by --store-path (or file-system.store-path in the
config file), performs one operation, and exits.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		return cfg.ValidateConfig(&conf)
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(dumpConfigCmd)
}

func setLoggingDefaults() {
	def := cfg.GetDefaultLoggingConfig()
	viper.SetDefault("logging.severity", def.Severity)
	viper.SetDefault("logging.format", def.Format)
	viper.SetDefault("logging.log-rotate.max-file-size-mb", def.LogRotate.MaxFileSizeMb)
	viper.SetDefault("logging.log-rotate.backup-file-count", def.LogRotate.BackupFileCount)
	viper.SetDefault("logging.log-rotate.compress", def.LogRotate.Compress)
}

// yamlTags makes viper match config keys against cfg.Config's yaml tags
// (e.g. "file-system.store-path") instead of the Go field names.
func yamlTags(c *mapstructure.DecoderConfig) { c.TagName = "yaml" }

func initConfig() {
	setLoggingDefaults()
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&conf, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&conf, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
}
