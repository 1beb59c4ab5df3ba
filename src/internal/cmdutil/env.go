package cmdutil

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/replayfs/replayfs/src/internal/errors"
)

// Decoder decodes an env file.
type Decoder interface {
	Decode() (map[string]string, error)
}

// Populate populates an object with environment variables.
//
// The environment has precedence over the decoders, earlier
// decoders have precedence over later decoders.
func Populate(object any, decoders ...Decoder) error {
	decoderMap, err := getDecoderMap(decoders)
	if err != nil {
		return err
	}
	return walkFields(reflect.ValueOf(object), false, func(field reflect.Value, structField reflect.StructField, tag *envTag) error {
		value := getValue(tag.key, tag.defaultValue, decoderMap)
		if value == "" {
			if tag.required {
				return errors.Errorf("%s: %s", envKeyNotSetWhenRequiredErr, tag.key)
			}
			return nil
		}
		return setField(field, structField, value)
	})
}

// PopulateDefaults will parse the tags of the given structure and populate each
// field with a default value (if specified in the tags). This is meant for use
// by tests, which do not want to read from env vars.
func PopulateDefaults(object any) error {
	return walkFields(reflect.ValueOf(object), false, func(field reflect.Value, structField reflect.StructField, tag *envTag) error {
		if tag.defaultValue == "" {
			return nil
		}
		return setField(field, structField, tag.defaultValue)
	})
}

const (
	cannotParseErr              = "cannot parse"
	envKeyNotSetWhenRequiredErr = "env key not set when required"
	expectedPointerErr          = "expected pointer"
	expectedStructErr           = "expected struct"
	fieldTypeNotAllowedErr      = "field type not allowed"
	invalidTagErr               = "invalid tag, must be KEY,{required},{default=DEFAULT_VALUE}"
)

// ByteSize is a number of bytes that may be written with a unit suffix, like "64MiB" or "4k".
type ByteSize int64

// ParseByteSize parses a size with an optional binary (KiB) or decimal (KB) suffix.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, errors.EnsureStack(err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// These are types whose values are parsed from a string rather than by kind.
var knownTypes = map[reflect.Type]func(string) (any, error){
	reflect.TypeOf(ByteSize(0)): func(x string) (any, error) {
		return ParseByteSize(x)
	},
	reflect.TypeOf(time.Duration(0)): func(x string) (any, error) {
		return time.ParseDuration(x) //nolint:wrapcheck
	},
}

type fieldFunc func(field reflect.Value, structField reflect.StructField, tag *envTag) error

func walkFields(reflectValue reflect.Value, recursive bool, f fieldFunc) error {
	if reflectValue.Type().Kind() == reflect.Ptr {
		if reflectValue.IsNil() {
			if !recursive {
				return errors.Errorf("%s: nil %v", expectedPointerErr, reflectValue.Type())
			}
			reflectValue.Set(reflect.New(reflectValue.Type().Elem()))
		}
		reflectValue = reflectValue.Elem()
	} else if !recursive {
		return errors.Errorf("%s: %v", expectedPointerErr, reflectValue.Type())
	}
	if reflectValue.Type().Kind() != reflect.Struct {
		return errors.Errorf("%s: %v", expectedStructErr, reflectValue.Type())
	}
	for i := 0; i < reflectValue.NumField(); i++ {
		structField := reflectValue.Type().Field(i)
		if !structField.IsExported() {
			continue
		}
		t := structField.Type
		if t.Kind() == reflect.Struct || (t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct) {
			if err := walkFields(reflectValue.Field(i), true, f); err != nil {
				return err
			}
			continue
		}
		tag, err := getEnvTag(structField)
		if err != nil {
			return err
		}
		if tag == nil {
			continue
		}
		if err := f(reflectValue.Field(i), structField, tag); err != nil {
			return err
		}
	}
	return nil
}

func getDecoderMap(decoders []Decoder) (map[string]string, error) {
	env := make(map[string]string)
	for _, decoder := range decoders {
		subEnv, err := decoder.Decode()
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		for key, value := range subEnv {
			if value != "" {
				if _, ok := env[key]; !ok {
					env[key] = value
				}
			}
		}
	}
	return env, nil
}

func getValue(key string, defaultValue string, decoderMap map[string]string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value := decoderMap[key]; value != "" {
		return value
	}
	return defaultValue
}

type envTag struct {
	key          string
	required     bool
	defaultValue string
}

func getEnvTag(structField reflect.StructField) (*envTag, error) {
	tag := structField.Tag.Get("env")
	if tag == "" {
		return nil, nil
	}
	split := strings.SplitN(tag, ",", 2)
	envTag := &envTag{
		key: split[0],
	}
	if len(split) == 1 {
		return envTag, nil
	}
	split = strings.SplitN(strings.TrimSpace(split[1]), "=", 2)
	switch split[0] {
	case "required":
		envTag.required = true
	case "default":
		if len(split) != 2 {
			return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
		}
		envTag.defaultValue = split[1]
	default:
		return nil, errors.Errorf("%s: %s", invalidTagErr, tag)
	}
	return envTag, nil
}

func setField(field reflect.Value, structField reflect.StructField, value string) error {
	if parse, ok := knownTypes[structField.Type]; ok {
		v, err := parse(value)
		if err != nil {
			return errors.Wrapf(err, "%s %s", cannotParseErr, structField.Name)
		}
		field.Set(reflect.ValueOf(v))
		return nil
	}
	var err error
	switch kind := structField.Type.Kind(); kind {
	case reflect.Bool:
		var b bool
		b, err = strconv.ParseBool(value)
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = strconv.ParseInt(value, 10, structField.Type.Bits())
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = strconv.ParseUint(value, 10, structField.Type.Bits())
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		var n float64
		n, err = strconv.ParseFloat(value, structField.Type.Bits())
		field.SetFloat(n)
	case reflect.String:
		field.SetString(value)
	default:
		return errors.Errorf("%s: %v", fieldTypeNotAllowedErr, kind)
	}
	if err != nil {
		return errors.Wrapf(err, "%s %s", cannotParseErr, structField.Name)
	}
	return nil
}

// YAMLDecoder reads a flat YAML mapping of env keys to values, like
//
//	FILEMAP_DB: /var/lib/replayfs/filemap.db
//	FILEMAP_PAGE_SIZE: 4KiB
type YAMLDecoder struct {
	Path string
}

// Decode implements Decoder.  A missing file decodes to nothing.
func (d YAMLDecoder) Decode() (map[string]string, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.EnsureStack(err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parse %s", d.Path)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			out[k] = v
		case map[string]any, []any:
			return nil, errors.Errorf("%s: key %s must be a scalar", d.Path, k)
		default:
			out[k] = strings.TrimSpace(yamlScalar(v))
		}
	}
	return out, nil
}

func yamlScalar(v any) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
