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

// config.go - Environment configuration document
package envconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/pmetl/core"
	"github.com/aaronlmathis/pmetl/naming"
)

// StartDateLayout is the layout of dag.start_date.
const StartDateLayout = "2006-01-02"

// Document is the full environment configuration keyed by environment id.
type Document map[string]Environment

// Environment is the configuration of a single deployment environment.
// It is treated as immutable once loaded.
type Environment struct {
	EnvID             string `json:"env_id" yaml:"env_id"`
	DeploymentVersion string `json:"deployment_version" yaml:"deployment_version"`
	ClusterID         string `json:"airflow_cluster_id" yaml:"airflow_cluster_id"`
	ConnID            string `json:"airflow_aws_conn_id" yaml:"airflow_aws_conn_id"`
	AssetsLocation    string `json:"assets_location" yaml:"assets_location"`
	Region            string `json:"region" yaml:"region"`

	// AWSEnv embeds the cloud identity for local and test deployments. When it
	// is absent the identity is fetched from the platform metadata endpoint.
	AWSEnv *AWSEnv `json:"_aws_env,omitempty" yaml:"_aws_env,omitempty"`

	DataLoadTriggerTopicARN string `json:"data_load_trigger_sns_topic_arn" yaml:"data_load_trigger_sns_topic_arn"`

	Pipelines    map[string]PipelineConfig `json:"pipelines" yaml:"pipelines"`
	AWSResources naming.ResourceTable      `json:"aws_resources" yaml:"aws_resources"`

	Warehouse *WarehouseConfig `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	Jira      *JiraConfig      `json:"jira,omitempty" yaml:"jira,omitempty"`
}

// AWSEnv is the subset of the instance identity document the pipelines need.
type AWSEnv struct {
	Region    string `json:"region" yaml:"region"`
	AccountID string `json:"accountId" yaml:"accountId"`
}

// WarehouseConfig locates the SQL warehouse used for metric queries.
type WarehouseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
	DSNEnv string `json:"dsn_env" yaml:"dsn_env"` // env var holding the DSN, preferred over DSN
}

// ResolveDSN returns the DSN, reading DSNEnv first when set.
func (w WarehouseConfig) ResolveDSN() string {
	if w.DSNEnv != "" {
		if v := os.Getenv(w.DSNEnv); v != "" {
			return v
		}
	}
	return w.DSN
}

// JiraConfig locates the issue tracker.
type JiraConfig struct {
	URL      string `json:"url" yaml:"url"`
	Username string `json:"username" yaml:"username"`
	TokenEnv string `json:"token_env" yaml:"token_env"`
}

// DAGConfig holds the scheduling settings of one pipeline.
type DAGConfig struct {
	Schedule               string `json:"schedule" yaml:"schedule"`
	StartDate              string `json:"start_date" yaml:"start_date"`
	Catchup                bool   `json:"catchup" yaml:"catchup"`
	MaxActiveRuns          int    `json:"max_active_runs" yaml:"max_active_runs"`
	UseCloudFormationStack bool   `json:"use_cloudformation_stack" yaml:"use_cloudformation_stack"`
}

// Start parses StartDate.
func (d DAGConfig) Start() (time.Time, error) {
	t, err := time.Parse(StartDateLayout, d.StartDate)
	if err != nil {
		return time.Time{}, &core.ConfigurationError{Key: "dag.start_date", Msg: err.Error()}
	}
	return t, nil
}

// TicketConfig describes the issue filed by a ticketing step. Summary and
// Description are templates rendered against the run's reference date.
type TicketConfig struct {
	Project     string   `json:"project" yaml:"project"`
	IssueType   string   `json:"issue_type" yaml:"issue_type"`
	Summary     string   `json:"summary" yaml:"summary"`
	Description string   `json:"description" yaml:"description"`
	Labels      []string `json:"labels" yaml:"labels"`
	Assignee    string   `json:"assignee" yaml:"assignee"`
	Priority    string   `json:"priority" yaml:"priority"`
	Components  []string `json:"components" yaml:"components"`
}

// PipelineConfig is the pipeline-specific sub-configuration. Keys without a
// typed field stay available through Raw.
type PipelineConfig struct {
	DAG           DAGConfig                `json:"dag" yaml:"dag"`
	LookbackHours int                      `json:"lookback_hours" yaml:"lookback_hours"`
	Tickets       map[string]*TicketConfig `json:"tickets" yaml:"tickets"`

	Raw map[string]any `json:"-" yaml:"-"`
}

func (p *PipelineConfig) UnmarshalJSON(data []byte) error {
	type plain PipelineConfig
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PipelineConfig(v)
	p.Raw = raw
	return nil
}

func (p *PipelineConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain PipelineConfig
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = PipelineConfig(v)
	p.Raw = raw
	return nil
}

// Ticket returns the named ticket configuration, or nil when none is configured.
func (p PipelineConfig) Ticket(name string) *TicketConfig {
	if p.Tickets == nil {
		return nil
	}
	return p.Tickets[name]
}

// String returns an extra string setting or def.
func (p PipelineConfig) String(key, def string) string {
	if v, ok := p.Raw[key].(string); ok {
		return v
	}
	return def
}

// Int returns an extra integer setting or def. JSON numbers decode as float64.
func (p PipelineConfig) Int(key string, def int) int {
	switch v := p.Raw[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Validate checks the keys every pipeline needs.
func (e Environment) Validate() error {
	if e.EnvID == "" {
		return &core.ConfigurationError{Key: "env_id"}
	}
	if e.DeploymentVersion == "" {
		return &core.ConfigurationError{Key: "deployment_version"}
	}
	if e.ClusterID == "" {
		return &core.ConfigurationError{Key: "airflow_cluster_id"}
	}
	return nil
}

// Pipeline returns the sub-configuration of the named pipeline.
func (e Environment) Pipeline(name string) (PipelineConfig, error) {
	p, ok := e.Pipelines[name]
	if !ok {
		return PipelineConfig{}, &core.ConfigurationError{Key: "pipelines." + name}
	}
	return p, nil
}

// PipelineNames returns the configured pipeline names, sorted.
func (e Environment) PipelineNames() []string {
	names := make([]string, 0, len(e.Pipelines))
	for name := range e.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a multi-environment document and returns the envID section.
func Load(path, envID string) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Environment{}, fmt.Errorf("read env config %s: %w", path, err)
	}
	doc, err := DecodeDocument(data, formatOf(path))
	if err != nil {
		return Environment{}, fmt.Errorf("decode env config %s: %w", path, err)
	}
	env, ok := doc[envID]
	if !ok {
		return Environment{}, &core.ConfigurationError{Key: envID, Msg: "environment not present in " + path}
	}
	if env.EnvID == "" {
		env.EnvID = envID
	}
	return env, env.Validate()
}

// LoadEnvironment reads a document holding a single, already selected
// environment (the deployed env-config.json).
func LoadEnvironment(path string) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Environment{}, fmt.Errorf("read env config %s: %w", path, err)
	}
	env, err := DecodeEnvironment(data, formatOf(path))
	if err != nil {
		return Environment{}, fmt.Errorf("decode env config %s: %w", path, err)
	}
	return env, env.Validate()
}

// Format is the encoding of a configuration document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeDocument decodes a multi-environment document.
func DecodeDocument(data []byte, format Format) (Document, error) {
	var doc Document
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeEnvironment decodes a single-environment document.
func DecodeEnvironment(data []byte, format Format) (Environment, error) {
	var env Environment
	if err := decode(data, format, &env); err != nil {
		return Environment{}, err
	}
	return env, nil
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}
