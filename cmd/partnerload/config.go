package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/falkerops/partnerload/internal/config"
)

const envPrefix = "PARTNERLOAD"

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"base-url":        "app.base_url",
	"insecure":        "app.insecure_skip_verify",
	"email":           "credentials.email",
	"password":        "credentials.password",
	"stdin":           "input.stdin",
	"delimiter":       "input.delimiter",
	"chromedriver":    "browser.chromedriver_path",
	"port":            "browser.port",
	"remote-url":      "browser.remote_url",
	"chrome-binary":   "browser.chrome_binary",
	"headless":        "browser.headless",
	"proxy":           "browser.proxy",
	"webdriver-debug": "browser.debug",
	"record-delay":    "pacing.record_delay",
	"output":          "report.output_file",
	"format":          "report.format",
	"log-level":       "log.level",
	"no-color":        "log.no_color",
	"silent":          "log.silent",
	"failure-log":     "log.failure_file",
	"resume-file":     "resume_file",
	"skip-preflight":  "skip_preflight",
	"dry-run":         "dry_run",
}

// registerFlags declares every flag bound through flagKeys plus the loader's own flags.
func registerFlags(cmd *cobra.Command) {
	d := config.GetDefaultConfig()
	f := cmd.Flags()
	f.String("config", "", "Config file (yaml, toml or json)")
	f.String("env-file", ".env", "Dotenv file loaded before reading the environment")

	f.String("base-url", d.App.BaseURL, "Base URL of the ERP")
	f.Bool("insecure", false, "Skip TLS verification in the preflight check")
	f.String("email", "", "Login e-mail (env EMAIL)")
	f.String("password", "", "Login password (env SENHA)")
	f.Bool("stdin", false, "Read the CSV from stdin")
	f.String("delimiter", d.Input.Delimiter, "CSV field delimiter")
	f.String("chromedriver", d.Browser.ChromeDriverPath, "Path to the chromedriver binary")
	f.Int("port", d.Browser.Port, "Port for the spawned chromedriver")
	f.String("remote-url", "", "Use a running WebDriver server instead of spawning chromedriver")
	f.String("chrome-binary", "", "Chrome binary to drive")
	f.Bool("headless", false, "Run Chrome headless")
	f.String("proxy", "", "Proxy for the browser and preflight (http, https or socks5 URL)")
	f.Bool("webdriver-debug", false, "Log WebDriver wire traffic")
	f.Duration("record-delay", d.Pacing.RecordDelay, "Minimum delay between records")
	f.StringP("output", "o", "", "Report file (default stdout)")
	f.StringP("format", "f", d.Report.Format, "Report format: text, json or csv")
	f.String("log-level", d.Log.Level, "Log level: debug, info, warn, error")
	f.Bool("no-color", false, "Disable coloured output")
	f.Bool("silent", false, "Only print errors")
	f.String("failure-log", d.Log.FailureFile, "Append unregistered and unsaved tax ids to this file")
	f.String("resume-file", "", "Remember completed records here and skip them on the next run")
	f.Bool("skip-preflight", false, "Do not check that the ERP is reachable before starting the browser")
	f.Bool("dry-run", false, "Fill every form but never click save")
}

// loadConfig resolves the configuration with precedence flag > env > config file > defaults.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	if err := loadEnvFile(cmd); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, "", reflect.ValueOf(*config.GetDefaultConfig()))

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("credentials.email", envPrefix+"_CREDENTIALS_EMAIL", "EMAIL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("credentials.password", envPrefix+"_CREDENTIALS_PASSWORD", "SENHA"); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	if len(args) > 0 {
		v.Set("input.file", args[0])
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads the dotenv file. Only an explicitly requested file must exist.
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// setDefaults registers every mapstructure key of the default config so AutomaticEnv
// can see keys that no config file mentions.
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
