package config

import (
	"fmt"
	"strings"
)

// WebDriver element location strategies. The values match the W3C wire names
// used by github.com/tebeka/selenium (selenium.ByID, selenium.ByName, ...).
const (
	ByID              = "id"
	ByName            = "name"
	ByCSSSelector     = "css selector"
	ByXPATH           = "xpath"
	ByClassName       = "class name"
	ByTagName         = "tag name"
	ByLinkText        = "link text"
	ByPartialLinkText = "partial link text"
)

var locatorPrefixes = map[string]string{
	"id":           ByID,
	"name":         ByName,
	"css":          ByCSSSelector,
	"xpath":        ByXPATH,
	"class":        ByClassName,
	"tag":          ByTagName,
	"link":         ByLinkText,
	"partial-link": ByPartialLinkText,
}

// Locator identifies an element on the remote page.
type Locator struct {
	By    string
	Value string
}

// ParseLocator converts "prefix=value" into a Locator. The value may itself contain '='.
func ParseLocator(s string) (Locator, error) {
	prefix, value, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok || value == "" {
		return Locator{}, fmt.Errorf("invalid locator %q: expected <strategy>=<value>", s)
	}
	by, known := locatorPrefixes[strings.ToLower(strings.TrimSpace(prefix))]
	if !known {
		return Locator{}, fmt.Errorf("invalid locator %q: unknown strategy %q", s, prefix)
	}
	return Locator{By: by, Value: value}, nil
}

func (l Locator) String() string {
	for prefix, by := range locatorPrefixes {
		if by == l.By {
			return prefix + "=" + l.Value
		}
	}
	return l.By + "=" + l.Value
}

// Locators is the parsed form of SelectorsConfig.
type Locators struct {
	Body          Locator
	LoginField    Locator
	PasswordField Locator
	Modal         Locator
	ModalOK       Locator
	NewButton     Locator
	NameField     Locator
	TaxIDField    Locator
	LookupButton  Locator
	UpdateButton  Locator
	PhoneField    Locator
	EmailField    Locator
	SaveButton    Locator
}

// Parse validates every selector and returns the parsed set.
func (s SelectorsConfig) Parse() (Locators, error) {
	var out Locators
	fields := []struct {
		key string
		raw string
		dst *Locator
	}{
		{"body", s.Body, &out.Body},
		{"login_field", s.LoginField, &out.LoginField},
		{"password_field", s.PasswordField, &out.PasswordField},
		{"modal", s.Modal, &out.Modal},
		{"modal_ok", s.ModalOK, &out.ModalOK},
		{"new_button", s.NewButton, &out.NewButton},
		{"name_field", s.NameField, &out.NameField},
		{"tax_id_field", s.TaxIDField, &out.TaxIDField},
		{"lookup_button", s.LookupButton, &out.LookupButton},
		{"update_button", s.UpdateButton, &out.UpdateButton},
		{"phone_field", s.PhoneField, &out.PhoneField},
		{"email_field", s.EmailField, &out.EmailField},
		{"save_button", s.SaveButton, &out.SaveButton},
	}
	for _, f := range fields {
		loc, err := ParseLocator(f.raw)
		if err != nil {
			return Locators{}, fmt.Errorf("selectors.%s: %w", f.key, err)
		}
		*f.dst = loc
	}
	return out, nil
}
