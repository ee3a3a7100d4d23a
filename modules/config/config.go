package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"reflect"

	"github.com/chebyrash/promise"
	"github.com/go-playground/validator/v10"
)

type Config[T any] struct {
	defaultValue T
	dataDir      string

	loaded bool
	value  T
}

const DATA_DIR = "data"
const CONFIG_DIR = "config"

var validate = validator.New(validator.WithRequiredStructEnabled())

// New creates a config that lives at <dataDir>/config/<TypeName>.json. When no
// dataDir is given DATA_DIR is used.
func New[T any](defaultValue T, dataDir *string) *Config[T] {
	dir := DATA_DIR
	if dataDir != nil && *dataDir != "" {
		dir = *dataDir
	}
	return &Config[T]{defaultValue: defaultValue, dataDir: dir, value: defaultValue}
}

func (c *Config[T]) filePath() string {
	name := reflect.TypeFor[T]().Name()
	return path.Join(c.dataDir, CONFIG_DIR, name+".json")
}

// Init loads the config file, writing the defaults first if it does not exist.
func (c *Config[T]) Init() error {
	f, err := os.Open(c.filePath())
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		err = c.Update(func(t *T) {
			*t = c.defaultValue
		})
		if err != nil {
			return err
		}
	} else {
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		var value T
		if err := json.Unmarshal(b, &value); err != nil {
			return fmt.Errorf("failed to parse %s: %w", c.filePath(), err)
		}
		if err := validateValue(value); err != nil {
			return fmt.Errorf("invalid config %s: %w", c.filePath(), err)
		}
		c.value = value
	}
	c.loaded = true
	return nil
}

func (c *Config[T]) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		resolve(nil)
	})
}

func (c *Config[T]) Stop() error {
	return nil
}

func (c *Config[T]) Loaded() bool {
	return c.loaded
}

func (c *Config[T]) Get() T {
	return c.value
}

// Update applies updater to a copy of the current value, validates and persists
// it. The in-memory value only changes when the write succeeds.
func (c *Config[T]) Update(updater func(*T)) error {
	temp := c.value
	updater(&temp)
	if err := validateValue(temp); err != nil {
		return err
	}
	b, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(path.Dir(c.filePath()), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(c.filePath(), b, 0644)
	if err != nil {
		return err
	}
	c.value = temp
	return nil
}

func validateValue(v any) error {
	if reflect.ValueOf(v).Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return err
}
