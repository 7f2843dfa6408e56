package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings validation errors.
var (
	ErrMissingSetting  = errors.New("missing required setting")
	ErrInvalidPageSize = errors.New("page size must be positive")
)

// configName is the settings file name without extension.
const configName = ".sprintstats"

// configType is the settings file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for sprintstats settings.
const envPrefix = "SPRINTSTATS"

// DotenvFile is the optional dotenv file read before the environment is consulted.
const DotenvFile = ".env"

// Setting defaults.
const (
	DefaultRepos     = "repositories.json"
	DefaultSprints   = "sprints.json"
	DefaultUsers     = "users.json"
	DefaultCachePath = "repos"
	DefaultOutputDir = "."
	DefaultFormat    = "markdown"
	DefaultPageSize  = 20
	DefaultLogLevel  = "info"
)

// Settings holds the application settings of a run.
type Settings struct {
	Repos        string `mapstructure:"repos"`
	Sprints      string `mapstructure:"sprints"`
	Users        string `mapstructure:"users"`
	CachePath    string `mapstructure:"cache_path"`
	GiteaURL     string `mapstructure:"gitea_url"`
	GiteaToken   string `mapstructure:"gitea_token"`
	OutputDir    string `mapstructure:"output_dir"`
	Format       string `mapstructure:"format"`
	MetricsFile  string `mapstructure:"metrics_file"`
	LogLevel     string `mapstructure:"log_level"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	PageSize     int    `mapstructure:"page_size"`
	LogJSON      bool   `mapstructure:"log_json"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	Silent       bool   `mapstructure:"silent"`
	NoColor      bool   `mapstructure:"no_color"`
}

// CatalogPaths returns the catalog locations named by the settings.
func (s *Settings) CatalogPaths() CatalogPaths {
	return CatalogPaths{Users: s.Users, Sprints: s.Sprints, Repositories: s.Repos}
}

// ValidateRemote checks the settings needed to reach the review server.
func (s *Settings) ValidateRemote() error {
	var errs []error

	if s.GiteaURL == "" {
		errs = append(errs, fmt.Errorf("%w: gitea_url", ErrMissingSetting))
	}

	if s.GiteaToken == "" {
		errs = append(errs, fmt.Errorf("%w: gitea_token", ErrMissingSetting))
	}

	if s.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPageSize, s.PageSize))
	}

	return errors.Join(errs...)
}

// LoadSettings resolves settings from flags, environment, the optional settings
// file and defaults, in that order of precedence. A dotenv file in the working
// directory feeds the environment without overriding variables already set.
// If configPath is empty the settings file is searched in CWD and $HOME; a
// missing file is not an error.
func LoadSettings(configPath string, flags *pflag.FlagSet) (*Settings, error) {
	err := LoadDotenv(DotenvFile)
	if err != nil {
		return nil, err
	}

	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	if flags != nil {
		bindErr := bindFlags(viperCfg, flags)
		if bindErr != nil {
			return nil, bindErr
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read settings: %w", readErr)
		}
	}

	var settings Settings

	unmarshalErr := viperCfg.Unmarshal(&settings)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", unmarshalErr)
	}

	return &settings, nil
}

// LoadDotenv loads path into the process environment if it exists.
func LoadDotenv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// bindFlags binds every flag to the settings key of the same name, with
// dashes mapped to underscores.
func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error

	flags.VisitAll(func(flag *pflag.Flag) {
		key := strings.ReplaceAll(flag.Name, "-", "_")

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", flag.Name, err))
		}
	})

	return errors.Join(errs...)
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("repos", DefaultRepos)
	viperCfg.SetDefault("sprints", DefaultSprints)
	viperCfg.SetDefault("users", DefaultUsers)
	viperCfg.SetDefault("cache_path", DefaultCachePath)
	viperCfg.SetDefault("gitea_url", "")
	viperCfg.SetDefault("gitea_token", "")
	viperCfg.SetDefault("output_dir", DefaultOutputDir)
	viperCfg.SetDefault("format", DefaultFormat)
	viperCfg.SetDefault("page_size", DefaultPageSize)
	viperCfg.SetDefault("metrics_file", "")
	viperCfg.SetDefault("log_level", DefaultLogLevel)
	viperCfg.SetDefault("log_json", false)
	viperCfg.SetDefault("otlp_endpoint", "")
	viperCfg.SetDefault("otlp_headers", "")
	viperCfg.SetDefault("otlp_insecure", false)
	viperCfg.SetDefault("silent", false)
	viperCfg.SetDefault("no_color", false)
}
