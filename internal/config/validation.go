package config

import (
	derrors "github.com/climaterisk/sitedeploy/internal/errors"
)

// configurationValidator checks each configuration section in turn.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateSite,
		cv.validatePreview,
		cv.validateRewrite,
		cv.validatePages,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateSite() error {
	site := cv.config.Site
	if site.Root == "" {
		return derrors.ValidationError("site.root must not be empty").Build()
	}
	if site.EntryFile == "" {
		return derrors.ValidationError("site.entry_file must not be empty").Build()
	}
	return nil
}

func (cv *configurationValidator) validatePreview() error {
	preview := cv.config.Preview
	if preview.Port < 0 || preview.Port > 65535 {
		return derrors.ValidationError("preview.port out of range").
			WithContext("port", preview.Port).
			Build()
	}
	if preview.BrowserDelay < 0 {
		return derrors.ValidationError("preview.browser_delay must not be negative").Build()
	}
	return nil
}

func (cv *configurationValidator) validateRewrite() error {
	rewrite := cv.config.Rewrite
	if rewrite.ProductionHost == "" {
		return derrors.ValidationError("rewrite.production_host must not be empty").Build()
	}
	if len(rewrite.TextExtensions) == 0 {
		return derrors.ValidationError("rewrite.text_extensions must not be empty").Build()
	}
	return nil
}

func (cv *configurationValidator) validatePages() error {
	pages := cv.config.Pages
	if pages.Owner == "" || pages.Repo == "" {
		return derrors.ValidationError("pages.owner and pages.repo are required").Build()
	}
	if pages.Branch == "" {
		return derrors.ValidationError("pages.branch must not be empty").Build()
	}
	for i, entry := range pages.Manifest {
		if entry.Source == "" || entry.Path == "" {
			return derrors.ValidationError("pages.manifest entries need source and path").
				WithContext("index", i).
				Build()
		}
	}
	return nil
}
