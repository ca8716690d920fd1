//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/pmetl/envconfig"
	"github.com/aaronlmathis/pmetl/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	envID       string
	loggingType string
	logLevel    string
	region      string
	profile     string
	identity    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "pmetl",
		Short:         "Partner measurement ETL pipelines",
		Long:          "Validates, lists and locally runs the partner pipelines defined for a deployment environment.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Initialize(opts.loggingType, opts.logLevel)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", envOr("PMETL_CONFIG", "envs-config.json"), "environment configuration file (json or yaml)")
	flags.StringVarP(&opts.envID, "env", "e", envOr("PMETL_ENV", "dev"), "environment id")
	flags.StringVar(&opts.loggingType, "logging-type", "tint", "logging type: json, text or tint")
	flags.StringVar(&opts.logLevel, "log-level", "info", "logging level: debug, info, warn, error")
	flags.StringVar(&opts.region, "region", os.Getenv("AWS_REGION"), "AWS region override")
	flags.StringVar(&opts.profile, "profile", os.Getenv("AWS_PROFILE"), "AWS shared config profile")
	flags.StringVar(&opts.identity, "identity", identityIMDS, "identity source when the config embeds none: imds or sts")

	rootCmd.AddCommand(newValidateCmd(opts), newListCmd(opts), newRunCmd(opts))
	return rootCmd
}

func (o *globalOptions) loadEnvironment() (envconfig.Environment, error) {
	return envconfig.Load(o.configPath, o.envID)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
