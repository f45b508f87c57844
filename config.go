package exprquery

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/shibukawa/exprquery/evaluator"
	"github.com/shibukawa/exprquery/extractor"
)

// Config represents the exprquery configuration
type Config struct {
	Placeholder PlaceholderConfig `yaml:"placeholder"`
	Expression  ExpressionConfig  `yaml:"expression"`
	Output      OutputConfig      `yaml:"output"`
}

// PlaceholderConfig controls how expressions are replaced in the query
type PlaceholderConfig struct {
	Naming      string `yaml:"naming"`      // synthetic or unique
	Prefix      string `yaml:"prefix"`      // name prefix
	Replacement string `yaml:"replacement"` // concat, braced or at
}

// ExpressionConfig declares what expressions can reference
type ExpressionConfig struct {
	Variables    map[string]string `yaml:"variables"`
	SystemValues map[string]any    `yaml:"system_values"`
}

// OutputConfig represents CLI output settings
type OutputConfig struct {
	Format string `yaml:"format"` // text, json or yaml
}

// Naming strategies
const (
	NamingSynthetic = "synthetic"
	NamingUnique    = "unique"
)

// Replacement styles
const (
	ReplacementConcat = "concat"
	ReplacementBraced = "braced"
	ReplacementAt     = "at"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultIdentifierPrefix is the default prefix for the "at" replacement style.
const DefaultIdentifierPrefix = "p"

// identifierPattern is what "@name" placeholders accept.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, applies defaults and validates the result
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	// Strict mode rejects unknown fields
	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	switch config.Placeholder.Naming {
	case NamingSynthetic, NamingUnique:
	default:
		return fmt.Errorf("%w: invalid placeholder.naming '%s': must be one of synthetic, unique", ErrConfigValidation, config.Placeholder.Naming)
	}

	switch config.Placeholder.Replacement {
	case ReplacementConcat, ReplacementBraced:
	case ReplacementAt:
		// pgx only recognizes identifier characters after '@'
		if !identifierPattern.MatchString(config.Placeholder.Prefix) {
			return fmt.Errorf("%w: placeholder.prefix '%s' must be an identifier when placeholder.replacement is 'at'", ErrConfigValidation, config.Placeholder.Prefix)
		}
	default:
		return fmt.Errorf("%w: invalid placeholder.replacement '%s': must be one of concat, braced, at", ErrConfigValidation, config.Placeholder.Replacement)
	}

	for name, typeName := range config.Expression.Variables {
		if name == evaluator.ArgsVariable || name == evaluator.SystemVariable {
			return fmt.Errorf("%w: expression.variables: '%s' is reserved", ErrConfigValidation, name)
		}

		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("%w: expression.variables: '%s' is not a valid variable name", ErrConfigValidation, name)
		}

		if _, err := evaluator.TypeByName(typeName); err != nil {
			return fmt.Errorf("%w: expression.variables.%s: %w", ErrConfigValidation, name, err)
		}
	}

	switch config.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: output.format '%s' is invalid: must be one of text, json, yaml", ErrConfigValidation, config.Output.Format)
	}

	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		Placeholder: PlaceholderConfig{
			Naming:      NamingSynthetic,
			Prefix:      extractor.DefaultSyntheticPrefix,
			Replacement: ReplacementConcat,
		},
		Expression: ExpressionConfig{
			Variables:    map[string]string{},
			SystemValues: map[string]any{},
		},
		Output: OutputConfig{
			Format: FormatText,
		},
	}
}

// applyDefaults fills in missing values with the defaults
func applyDefaults(config *Config) {
	defaults := getDefaultConfig()

	if config.Placeholder.Naming == "" {
		config.Placeholder.Naming = defaults.Placeholder.Naming
	}

	if config.Placeholder.Replacement == "" {
		config.Placeholder.Replacement = defaults.Placeholder.Replacement
	}

	if config.Placeholder.Prefix == "" {
		if config.Placeholder.Replacement == ReplacementAt {
			config.Placeholder.Prefix = DefaultIdentifierPrefix
		} else {
			config.Placeholder.Prefix = defaults.Placeholder.Prefix
		}
	}

	if config.Expression.Variables == nil {
		config.Expression.Variables = defaults.Expression.Variables
	}

	if config.Expression.SystemValues == nil {
		config.Expression.SystemValues = defaults.Expression.SystemValues
	}

	if config.Output.Format == "" {
		config.Output.Format = defaults.Output.Format
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareEnvPattern   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return bareEnvPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in system values.
// The placeholder prefix is left alone since the default one contains '$'.
func expandConfigEnvVars(config *Config) {
	for name, value := range config.Expression.SystemValues {
		if s, ok := value.(string); ok {
			config.Expression.SystemValues[name] = expandEnvVars(s)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// NameSource returns the parameter name source selected by placeholder.naming
func (c *Config) NameSource() extractor.ParameterNameSource {
	if c.Placeholder.Naming == NamingUnique {
		return extractor.UniqueNames(c.Placeholder.Prefix)
	}

	return extractor.SyntheticNames(c.Placeholder.Prefix)
}

// ReplacementSource returns the replacement source selected by placeholder.replacement
func (c *Config) ReplacementSource() extractor.ReplacementSource {
	switch c.Placeholder.Replacement {
	case ReplacementBraced:
		return extractor.Braced
	case ReplacementAt:
		return extractor.AtSign
	}

	return extractor.Concat
}

// QueryContext builds the extraction context described by the placeholder section
func (c *Config) QueryContext() (*extractor.QueryContext, error) {
	return extractor.New(c.NameSource(), c.ReplacementSource())
}

// Parameters returns the declared expression variables sorted by name
func (c *Config) Parameters() (evaluator.Parameters, error) {
	names := make([]string, 0, len(c.Expression.Variables))
	for name := range c.Expression.Variables {
		names = append(names, name)
	}

	sort.Strings(names)

	parameters := make(evaluator.Parameters, 0, len(names))

	for _, name := range names {
		typ, err := evaluator.TypeByName(c.Expression.Variables[name])
		if err != nil {
			return nil, fmt.Errorf("%w: expression.variables.%s: %w", ErrConfigValidation, name, err)
		}

		parameters = append(parameters, evaluator.Parameter{Name: name, Type: typ})
	}

	return parameters, nil
}

// EvaluatingQueryContext builds an evaluating context using CEL and the configured system values
func (c *Config) EvaluatingQueryContext() (*evaluator.EvaluatingQueryContext, error) {
	qc, err := c.QueryContext()
	if err != nil {
		return nil, err
	}

	parser, err := evaluator.NewCELParser()
	if err != nil {
		return nil, err
	}

	eqc, err := evaluator.NewEvaluatingQueryContext(qc, parser)
	if err != nil {
		return nil, err
	}

	return eqc.WithSystemValues(c.Expression.SystemValues), nil
}
