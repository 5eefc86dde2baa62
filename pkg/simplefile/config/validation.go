package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the settings each driver needs
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	mb, err := c.UploadMaxSizeMB()
	if err != nil {
		return err
	}
	if mb <= 0 {
		return fmt.Errorf("upload_max_size must be positive, got %q", c.UploadMaxSize)
	}

	switch c.URLStrategy {
	case "cdn":
		if c.CDNBaseURL == "" {
			return errors.New("cdn_base_url is required when using the cdn url strategy")
		}
	case "storage-delegated":
		if c.Driver != "s3" {
			return fmt.Errorf("the storage-delegated url strategy needs a presigning driver, got %q", c.Driver)
		}
	}

	switch c.Driver {
	case "postgres":
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required when using the postgres driver")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required when using the s3 driver")
		}
	}

	return nil
}

// formatValidationError reports the first failed field
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
