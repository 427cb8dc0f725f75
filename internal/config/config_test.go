package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Credentials.Email = "operator@example.com"
	cfg.Credentials.Password = "secret"
	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestDefaultConfigRequiresCredentials(t *testing.T) {
	err := GetDefaultConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.App.BaseURL = "" }, "base_url"},
		{"non http base url", func(c *Config) { c.App.BaseURL = "ftp://x" }, "http(s)"},
		{"unknown format", func(c *Config) { c.Report.Format = "xml" }, "report format"},
		{"negative field wait", func(c *Config) { c.Timings.Field = -time.Second }, "timings.field"},
		{"zero poll interval", func(c *Config) { c.Timings.PollInterval = 0 }, "poll_interval"},
		{"bad selector", func(c *Config) { c.Selectors.SaveButton = "button" }, "selectors.save_button"},
		{"no driver", func(c *Config) { c.Browser.ChromeDriverPath = "" }, "chromedriver_path"},
		{"long delimiter", func(c *Config) { c.Input.Delimiter = ";;" }, "delimiter"},
		{"negative standby threshold", func(c *Config) { c.Pacing.MaxConsecutiveFailures = -1 }, "max_consecutive_failures"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRemoteURLReplacesChromeDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Browser.ChromeDriverPath = ""
	cfg.Browser.Port = 0
	cfg.Browser.RemoteURL = "http://selenium:4444/wd/hub"
	assert.NoError(t, cfg.Validate())
}

func TestPartnersURL(t *testing.T) {
	app := AppConfig{BaseURL: "https://erp.example.com/", PartnersPath: "/web#model=res.partner"}
	assert.Equal(t, "https://erp.example.com/web#model=res.partner", app.PartnersURL())
}

func TestParseLocator(t *testing.T) {
	loc, err := ParseLocator("xpath=//span[text()='Ok']")
	require.NoError(t, err)
	assert.Equal(t, Locator{By: ByXPATH, Value: "//span[text()='Ok']"}, loc)
	assert.Equal(t, "xpath=//span[text()='Ok']", loc.String())

	loc, err = ParseLocator(" CSS=.btn.o-kanban-button-new ")
	require.NoError(t, err)
	assert.Equal(t, ByCSSSelector, loc.By)

	_, err = ParseLocator("bogus=thing")
	assert.Error(t, err)
	_, err = ParseLocator("name=")
	assert.Error(t, err)
}

func TestDefaultSelectorsParse(t *testing.T) {
	locs, err := GetDefaultConfig().Selectors.Parse()
	require.NoError(t, err)
	assert.Equal(t, Locator{By: ByName, Value: "cnpj_cpf"}, locs.TaxIDField)
	assert.Equal(t, Locator{By: ByClassName, Value: "o_form_button_save"}, locs.SaveButton)
	assert.Equal(t, Locator{By: ByCSSSelector, Value: ".btn.btn-primary.o-kanban-button-new"}, locs.NewButton)
}

func TestConfigStringHidesCredentials(t *testing.T) {
	cfg := validConfig()
	assert.NotContains(t, cfg.String(), "secret")
}

func TestProxyEntryString(t *testing.T) {
	pe := ProxyEntry{Host: "10.0.0.1:3128", Username: "u", Password: "p"}
	assert.Equal(t, "http://u:p@10.0.0.1:3128", pe.String())
}
