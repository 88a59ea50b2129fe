package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/tsbuild/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "tsbuild.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "tsbuild.yaml"

	// DefaultSource is the default source directory.
	DefaultSource = "src"

	// DefaultStatic is the default static assets subdirectory of the source
	// directory.
	DefaultStatic = "static"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultCompiler is the default compiler command.
	DefaultCompiler = "tsc"

	// DefaultPort is the default dev and preview server port.
	DefaultPort = 8080

	// DefaultHost is the default dev and preview server host.
	DefaultHost = "localhost"

	// DefaultDebounce is the default watcher poll interval.
	DefaultDebounce = "100ms"
)

// Compiler backends.
const (
	BackendTSC     = "tsc"
	BackendESBuild = "esbuild"
)

// configFileNames lists the recognized config files in lookup order.
var configFileNames = []string{ConfigFileName, YAMLConfigFileName, "tsbuild.yml"}

// Config represents the complete tsbuild configuration.
type Config struct {
	// Preset names the preset the patterns and flags came from.
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Source is the source directory, relative to the project root.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Sources are glob patterns for modules, relative to Source.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// CompilerAssets are glob patterns for non-script files passed to the
	// compiler, relative to Source.
	CompilerAssets []string `json:"compilerAssets,omitempty" yaml:"compilerAssets,omitempty"`

	// Runtime lists fixed scripts, relative to the project root, appended to
	// every compiler invocation.
	Runtime []string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Static is the static assets directory, relative to Source.
	Static string `json:"static,omitempty" yaml:"static,omitempty"`

	// Output is the output directory, relative to the project root.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Compiler selects and configures the compiler.
	Compiler CompilerConfig `json:"compiler,omitempty" yaml:"compiler,omitempty"`

	// Flags are the compiler flags.
	Flags FlagsConfig `json:"flags,omitempty" yaml:"flags,omitempty"`

	// Build contains optional build outputs.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Dev contains dev and preview server settings.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Publish contains the upload target.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	// root is the project root all relative paths resolve against.
	root string

	// configPath stores the path where the config was loaded from.
	configPath string
}

// CompilerConfig selects the compiler backend.
type CompilerConfig struct {
	// Backend is "tsc" (external process) or "esbuild" (in-process).
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Command is the tsc command line, e.g. "tsc" or "npx tsc".
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Args are extra arguments placed after the recognized flags.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// EnvFile is a dotenv file, relative to the project root, whose
	// variables are added to the compiler environment.
	EnvFile string `json:"envFile,omitempty" yaml:"envFile,omitempty"`

	// Env are additional environment variables for the compiler.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// FlagsConfig contains the recognized compiler options.
type FlagsConfig struct {
	// Module is the module format (-m), e.g. "ES6".
	Module string `json:"module,omitempty" yaml:"module,omitempty"`

	// Target is the ECMAScript target version (-t), e.g. "ES2017".
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// AllowJS lets the compiler accept .js inputs such as runtime scripts.
	AllowJS bool `json:"allowJs,omitempty" yaml:"allowJs,omitempty"`

	// SourceMap emits source maps next to the compiled files.
	SourceMap bool `json:"sourceMap,omitempty" yaml:"sourceMap,omitempty"`

	// AlwaysStrict emits "use strict" in every output file.
	AlwaysStrict bool `json:"alwaysStrict,omitempty" yaml:"alwaysStrict,omitempty"`

	// AllowSyntheticDefaultImports allows default imports from modules
	// without a default export.
	AllowSyntheticDefaultImports bool `json:"allowSyntheticDefaultImports,omitempty" yaml:"allowSyntheticDefaultImports,omitempty"`

	// ESModuleInterop emits CommonJS/ES module interop helpers.
	ESModuleInterop bool `json:"esModuleInterop,omitempty" yaml:"esModuleInterop,omitempty"`
}

// BuildConfig contains optional build outputs.
type BuildConfig struct {
	// Clean removes the output directory before building.
	Clean bool `json:"clean,omitempty" yaml:"clean,omitempty"`

	// Manifest writes tsbuild-manifest.json into the output directory.
	Manifest bool `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// MetricsFile is a Prometheus textfile path written after each build.
	MetricsFile string `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
}

// DevConfig contains dev and preview server settings.
type DevConfig struct {
	// Port is the port to listen on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// HotReload reloads connected browsers after each rebuild.
	HotReload bool `json:"hotReload,omitempty" yaml:"hotReload,omitempty"`

	// Ignore contains extra patterns to ignore while watching.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// Debounce is the watcher poll interval, e.g. "100ms".
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`
}

// PublishConfig contains the upload target.
type PublishConfig struct {
	// Bucket is the S3 bucket name.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// New creates a new Config with default values and the default preset.
func New() *Config {
	cfg := &Config{
		Source: DefaultSource,
		Static: DefaultStatic,
		Output: DefaultOutput,
		Compiler: CompilerConfig{
			Backend: BackendTSC,
			Command: DefaultCompiler,
		},
		Dev: DevConfig{
			Port:      DefaultPort,
			Host:      DefaultHost,
			HotReload: true,
			Debounce:  DefaultDebounce,
		},
	}
	// The default preset always exists.
	_ = cfg.ApplyPreset(DefaultPreset)
	return cfg
}

// Default returns the default configuration rooted at dir, for projects
// without a configuration file.
func Default(dir string) (*Config, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	cfg := New()
	cfg.root = root
	return cfg, nil
}

// Load reads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	path, ok := configFileIn(dir)
	if !ok {
		return nil, errors.New("E120").
			WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir).
			WithSuggestion("Run 'tsbuild init' to create one")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path.
//
// The file is decoded twice: once to learn the preset, and once on top of
// that preset so that keys present in the file override it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E120").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	var probe Config
	if err := decode(path, data, &probe); err != nil {
		return nil, err
	}

	cfg := New()
	if probe.Preset != "" {
		if err := cfg.ApplyPreset(probe.Preset); err != nil {
			return nil, err
		}
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	cfg.configPath = abs
	cfg.root = filepath.Dir(abs)
	cfg.applyDefaults()

	return cfg, nil
}

// decode unmarshals data into cfg using the format implied by path.
func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON and uses known keys")
	}
	return nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path. The format follows
// the file extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.New("E120").Wrap(err)
	}
	c.configPath = abs
	c.root = filepath.Dir(abs)
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Root returns the project root directory.
func (c *Config) Root() string {
	return c.root
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.Static == "" {
		c.Static = DefaultStatic
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Compiler.Backend == "" {
		c.Compiler.Backend = BackendTSC
	}
	if c.Compiler.Command == "" {
		c.Compiler.Command = DefaultCompiler
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = DefaultDebounce
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E126").
			WithDetail("Port must be between 0 and 65535")
	}
	switch c.Compiler.Backend {
	case BackendTSC, BackendESBuild:
	default:
		return errors.New("E124").
			WithDetail("Unknown backend \"" + c.Compiler.Backend + "\"")
	}
	if len(c.Sources) == 0 {
		return errors.New("E126").
			WithDetail("At least one source pattern is required").
			WithSuggestion("Set \"sources\" or choose a preset")
	}
	if _, err := time.ParseDuration(c.Dev.Debounce); err != nil {
		return errors.New("E126").
			WithDetail("Invalid dev.debounce: " + err.Error())
	}
	return nil
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// DebounceDuration returns the parsed watcher interval.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultDebounce)
	}
	return d
}

// resolve returns path joined to base unless it is absolute.
func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// SourcePath returns the absolute path to the source directory.
func (c *Config) SourcePath() string {
	return resolve(c.root, c.Source)
}

// StaticPath returns the absolute path to the static assets directory.
func (c *Config) StaticPath() string {
	return resolve(c.SourcePath(), c.Static)
}

// OutputPath returns the absolute path to the build output directory.
func (c *Config) OutputPath() string {
	return resolve(c.root, c.Output)
}

// RuntimePaths returns the absolute paths of the runtime scripts.
func (c *Config) RuntimePaths() []string {
	paths := make([]string, 0, len(c.Runtime))
	for _, p := range c.Runtime {
		paths = append(paths, resolve(c.root, p))
	}
	return paths
}

// EnvFilePath returns the absolute path to the compiler env file, or "".
func (c *Config) EnvFilePath() string {
	if c.Compiler.EnvFile == "" {
		return ""
	}
	return resolve(c.root, c.Compiler.EnvFile)
}

// configFileIn returns the first config file present in dir.
func configFileIn(dir string) (string, bool) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, ok := configFileIn(dir)
	return ok
}

// FindProjectRoot walks up directories to find the project root.
// It reports false when no directory up to the filesystem root has a
// configuration file.
func FindProjectRoot(startDir string) (string, bool, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, err
	}

	for {
		if Exists(dir) {
			return dir, true, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Resolve loads the configuration of the project containing dir, or the
// defaults rooted at dir when there is none.
func Resolve(dir string) (*Config, error) {
	root, found, err := FindProjectRoot(dir)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	if !found {
		return Default(dir)
	}
	return Load(root)
}
