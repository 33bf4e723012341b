package erp

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the connection settings of the ERP adapter.
type Config struct {
	BaseURL           string        `validate:"required,url"`
	Username          string        `validate:"required_with=Password"`
	Password          string        `validate:"required_with=Username"`
	Client            string        `validate:"required,numeric"`
	Timeout           time.Duration `validate:"gt=0"`
	MaxResponseBytes  int64         `validate:"gt=0"`
	RequestsPerSecond float64       `validate:"gt=0"`
	Burst             int           `validate:"gte=1"`
}

// Validate checks the struct tags and returns the first violation in readable form.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("erp config: %s failed on %q", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("erp config: %w", err)
}

func (c Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
