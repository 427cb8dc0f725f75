package config

import (
	"fmt"
	"strings"
	"time"
)

// Report formats accepted by the reporter.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all the configuration for a partnerload run.
// Fields are populated by Viper from defaults, config file, environment and flags.
type Config struct {
	App           AppConfig         `mapstructure:"app"`
	Credentials   CredentialsConfig `mapstructure:"credentials"`
	Input         InputConfig       `mapstructure:"input"`
	Browser       BrowserConfig     `mapstructure:"browser"`
	Timings       TimingsConfig     `mapstructure:"timings"`
	Selectors     SelectorsConfig   `mapstructure:"selectors"`
	Pacing        PacingConfig      `mapstructure:"pacing"`
	Report        ReportConfig      `mapstructure:"report"`
	Log           LogConfig         `mapstructure:"log"`
	ResumeFile    string            `mapstructure:"resume_file"`
	SkipPreflight bool              `mapstructure:"skip_preflight"`
	DryRun        bool              `mapstructure:"dry_run"` // Fill every field but never click save
}

// AppConfig locates the target web application.
type AppConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// PartnersPath is appended to BaseURL to reach the partner kanban screen.
	PartnersPath string `mapstructure:"partners_path"`
	// LoginMarker is the URL fragment that identifies the login page.
	LoginMarker        string `mapstructure:"login_marker"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// PartnersURL returns the absolute URL of the partner creation screen.
func (a AppConfig) PartnersURL() string {
	return strings.TrimRight(a.BaseURL, "/") + "/" + strings.TrimLeft(a.PartnersPath, "/")
}

// CredentialsConfig holds the operator login.
type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// InputConfig describes where records come from.
type InputConfig struct {
	File      string `mapstructure:"file"`
	Stdin     bool   `mapstructure:"stdin"`
	Delimiter string `mapstructure:"delimiter"`
}

// BrowserConfig controls how the WebDriver session is started.
type BrowserConfig struct {
	ChromeDriverPath string      `mapstructure:"chromedriver_path"`
	Port             int         `mapstructure:"port"`
	RemoteURL        string      `mapstructure:"remote_url"` // Use an already running WebDriver server instead of spawning chromedriver
	ChromeBinary     string      `mapstructure:"chrome_binary"`
	Headless         bool        `mapstructure:"headless"`
	ExtraArgs        []string    `mapstructure:"extra_args"`
	ProxyInput       string      `mapstructure:"proxy"`
	ParsedProxy      *ProxyEntry `mapstructure:"-"`
	Debug            bool        `mapstructure:"debug"` // Mirror WebDriver wire traffic to stderr
}

// TimingsConfig gathers every bounded wait and fixed pause of the UI workflow.
type TimingsConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PageLoad         time.Duration `mapstructure:"page_load"`
	LoginRedirect    time.Duration `mapstructure:"login_redirect"`
	ModalAppear      time.Duration `mapstructure:"modal_appear"`
	ModalButton      time.Duration `mapstructure:"modal_button"`
	ModalClickDelay  time.Duration `mapstructure:"modal_click_delay"`
	ModalClose       time.Duration `mapstructure:"modal_close"`
	NewButton        time.Duration `mapstructure:"new_button"`
	Field            time.Duration `mapstructure:"field"`
	LookupSettle     time.Duration `mapstructure:"lookup_settle"`
	UpdateClickDelay time.Duration `mapstructure:"update_click_delay"`
	UpdateSettle     time.Duration `mapstructure:"update_settle"`
}

// SelectorsConfig is the interaction contract with the remote page.
// Each value is a locator string such as "name=phone" or "css=.o_form_button_save".
type SelectorsConfig struct {
	Body          string `mapstructure:"body"`
	LoginField    string `mapstructure:"login_field"`
	PasswordField string `mapstructure:"password_field"`
	Modal         string `mapstructure:"modal"`
	ModalOK       string `mapstructure:"modal_ok"`
	NewButton     string `mapstructure:"new_button"`
	NameField     string `mapstructure:"name_field"`
	TaxIDField    string `mapstructure:"tax_id_field"`
	LookupButton  string `mapstructure:"lookup_button"`
	UpdateButton  string `mapstructure:"update_button"`
	PhoneField    string `mapstructure:"phone_field"`
	EmailField    string `mapstructure:"email_field"`
	SaveButton    string `mapstructure:"save_button"`
}

// PacingConfig spaces records out and backs off after repeated failures.
type PacingConfig struct {
	RecordDelay            time.Duration `mapstructure:"record_delay"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"` // 0 disables standby
	InitialStandby         time.Duration `mapstructure:"initial_standby"`
	StandbyIncrement       time.Duration `mapstructure:"standby_increment"`
	MaxStandby             time.Duration `mapstructure:"max_standby"`
}

// ReportConfig selects where and how the run report is written.
type ReportConfig struct {
	OutputFile string `mapstructure:"output_file"`
	Format     string `mapstructure:"format"`
}

// LogConfig configures console and failure logging.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	NoColor     bool   `mapstructure:"no_color"`
	Silent      bool   `mapstructure:"silent"`
	FailureFile string `mapstructure:"failure_file"`
}

// ProxyEntry holds the parsed components of a proxy string.
type ProxyEntry struct {
	Scheme   string
	Host     string // host:port
	Username string
	Password string
}

// String returns the proxy URL string representation.
// Omits user/pass if not present. Defaults to http scheme if not present.
func (pe *ProxyEntry) String() string {
	userInfo := ""
	if pe.Username != "" {
		userInfo = pe.Username
		if pe.Password != "" {
			userInfo += ":" + pe.Password
		}
		userInfo += "@"
	}
	scheme := pe.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, userInfo, pe.Host)
}

// GetDefaultConfig returns a Config struct populated with default values.
// Viper in main.go registers these as defaults before reading other sources.
func GetDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			BaseURL:      "https://falkerstaging.cloud.escodoo.com",
			PartnersPath: "web#action=342&model=res.partner&view_type=kanban&cids=1&menu_id=525",
			LoginMarker:  "web/login",
		},
		Input: InputConfig{
			File:      "dados_empresas.csv",
			Delimiter: ",",
		},
		Browser: BrowserConfig{
			ChromeDriverPath: "/usr/bin/chromedriver",
			Port:             9515,
			ExtraArgs:        []string{},
		},
		Timings: TimingsConfig{
			PollInterval:     500 * time.Millisecond,
			PageLoad:         20 * time.Second,
			LoginRedirect:    20 * time.Second,
			ModalAppear:      5 * time.Second,
			ModalButton:      5 * time.Second,
			ModalClickDelay:  3 * time.Second,
			ModalClose:       5 * time.Second,
			NewButton:        20 * time.Second,
			Field:            10 * time.Second,
			LookupSettle:     5 * time.Second,
			UpdateClickDelay: 25 * time.Second,
			UpdateSettle:     10 * time.Second,
		},
		Selectors: SelectorsConfig{
			Body:          "tag=body",
			LoginField:    "id=login",
			PasswordField: "id=password",
			Modal:         "class=modal-content",
			ModalOK:       "xpath=//button[@class='btn btn-primary']/span[text()='Ok']",
			NewButton:     "css=.btn.btn-primary.o-kanban-button-new",
			NameField:     "name=name",
			TaxIDField:    "name=cnpj_cpf",
			LookupButton:  "name=action_open_cnpj_search_wizard",
			UpdateButton:  "name=action_update_partner",
			PhoneField:    "name=phone",
			EmailField:    "name=email",
			SaveButton:    "class=o_form_button_save",
		},
		Pacing: PacingConfig{
			RecordDelay:            5 * time.Second,
			MaxConsecutiveFailures: 3,
			InitialStandby:         1 * time.Minute,
			StandbyIncrement:       1 * time.Minute,
			MaxStandby:             5 * time.Minute,
		},
		Report: ReportConfig{
			OutputFile: "", // stdout
			Format:     FormatText,
		},
		Log: LogConfig{
			Level:       "info",
			FailureFile: "cadastros_erro.log",
		},
	}
}

// Validate checks the Config after it has been populated by Viper.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return fmt.Errorf("app.base_url cannot be empty")
	}
	if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		return fmt.Errorf("app.base_url must be an http(s) URL, got %q", c.App.BaseURL)
	}
	if c.App.LoginMarker == "" {
		return fmt.Errorf("app.login_marker cannot be empty")
	}
	if c.Credentials.Email == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials are required (set EMAIL and SENHA, or --email/--password)")
	}
	if c.Browser.RemoteURL == "" && c.Browser.ChromeDriverPath == "" {
		return fmt.Errorf("either browser.chromedriver_path or browser.remote_url must be set")
	}
	if c.Browser.RemoteURL == "" && c.Browser.Port <= 0 {
		return fmt.Errorf("browser.port must be positive")
	}
	switch c.Report.Format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("unknown report format %q (text, json, csv)", c.Report.Format)
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		return fmt.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	if c.Timings.PollInterval <= 0 {
		return fmt.Errorf("timings.poll_interval must be positive")
	}
	for name, d := range c.Timings.named() {
		if d < 0 {
			return fmt.Errorf("timings.%s cannot be negative", name)
		}
	}
	if c.Pacing.RecordDelay < 0 || c.Pacing.InitialStandby < 0 || c.Pacing.StandbyIncrement < 0 || c.Pacing.MaxStandby < 0 {
		return fmt.Errorf("pacing durations cannot be negative")
	}
	if c.Pacing.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("pacing.max_consecutive_failures cannot be negative")
	}
	if _, err := c.Selectors.Parse(); err != nil {
		return err
	}
	return nil
}

func (t TimingsConfig) named() map[string]time.Duration {
	return map[string]time.Duration{
		"page_load":          t.PageLoad,
		"login_redirect":     t.LoginRedirect,
		"modal_appear":       t.ModalAppear,
		"modal_button":       t.ModalButton,
		"modal_click_delay":  t.ModalClickDelay,
		"modal_close":        t.ModalClose,
		"new_button":         t.NewButton,
		"field":              t.Field,
		"lookup_settle":      t.LookupSettle,
		"update_click_delay": t.UpdateClickDelay,
		"update_settle":      t.UpdateSettle,
	}
}

// String remains useful for debugging. Credentials are never printed.
func (c *Config) String() string {
	proxy := "none"
	if c.Browser.ParsedProxy != nil {
		proxy = c.Browser.ParsedProxy.Host
	}
	return fmt.Sprintf("BaseURL: %s, Input: %s (stdin: %t), Driver: %s, Remote: %s, Headless: %t, Proxy: %s, RecordDelay: %s, Report: %s/%s, LogLevel: %s, DryRun: %t",
		c.App.BaseURL, c.Input.File, c.Input.Stdin, c.Browser.ChromeDriverPath, c.Browser.RemoteURL, c.Browser.Headless, proxy,
		c.Pacing.RecordDelay, c.Report.Format, c.Report.OutputFile, c.Log.Level, c.DryRun)
}
