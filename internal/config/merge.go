package config

import (
	"errors"
	"math"
	"slices"
	"sort"
)

// MergeOptions resolves a raw options mapping against DefaultOptions.
//
// Missing keys keep their defaults and unknown keys are ignored. A known key
// with a value of the wrong type also keeps its default; every such key is
// reported in the returned error (joined *OptionTypeError values) while the
// returned Options are still complete and usable.
func MergeOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	var errs []error

	// Sorted keys give a stable error order.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if value == nil {
			continue
		}

		var err error
		switch key {
		case KeyArchive:
			err = setBool(key, value, &opts.Archive)
		case KeyLabels:
			err = setBool(key, value, &opts.Labels)
		case KeyTimeoutIsError:
			err = setBool(key, value, &opts.TimeoutIsError)
		case KeyClasses:
			err = setStrings(key, value, &opts.Classes)
		case KeyTimeoutDurationMS:
			err = setFloat(key, value, &opts.TimeoutDurationMS)
		case KeyRequestsPerSecond:
			err = setFloat(key, value, &opts.RequestsPerSecond)
		case KeyConcurrency:
			var n float64
			if err = setFloat(key, value, &n); err == nil {
				opts.Concurrency = int(n)
			}
		case KeyMaxBodySize:
			var n float64
			if err = setFloat(key, value, &n); err == nil {
				opts.MaxBodySize = int64(n)
			}
		case KeyMaxRedirects:
			var n float64
			if err = setFloat(key, value, &n); err == nil {
				opts.MaxRedirects = int(n)
			}
		case KeyUserAgent:
			err = setString(key, value, &opts.UserAgent)
		case KeyProxy:
			err = setString(key, value, &opts.Proxy)
		default:
			// Unknown keys are ignored.
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return opts, errors.Join(errs...)
}

// ToMap converts Options back into a raw mapping using the same keys that
// MergeOptions understands.
func (o Options) ToMap() map[string]any {
	return map[string]any{
		KeyArchive:           o.Archive,
		KeyClasses:           slices.Clone(o.Classes),
		KeyLabels:            o.Labels,
		KeyTimeoutDurationMS: o.TimeoutDurationMS,
		KeyTimeoutIsError:    o.TimeoutIsError,
		KeyUserAgent:         o.UserAgent,
		KeyMaxBodySize:       o.MaxBodySize,
		KeyConcurrency:       o.Concurrency,
		KeyRequestsPerSecond: o.RequestsPerSecond,
		KeyProxy:             o.Proxy,
		KeyMaxRedirects:      o.MaxRedirects,
	}
}

func setBool(key string, value any, dst *bool) error {
	b, ok := value.(bool)
	if !ok {
		return &OptionTypeError{Key: key, Value: value, Want: "bool"}
	}
	*dst = b
	return nil
}

func setString(key string, value any, dst *string) error {
	s, ok := value.(string)
	if !ok {
		return &OptionTypeError{Key: key, Value: value, Want: "string"}
	}
	*dst = s
	return nil
}

// setStrings accepts a list of strings. A single string is taken as a
// one-element list.
func setStrings(key string, value any, dst *[]string) error {
	switch v := value.(type) {
	case string:
		*dst = []string{v}
		return nil
	case []string:
		*dst = slices.Clone(v)
		return nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return &OptionTypeError{Key: key, Value: value, Want: "list of strings"}
			}
			out = append(out, s)
		}
		*dst = out
		return nil
	default:
		return &OptionTypeError{Key: key, Value: value, Want: "list of strings"}
	}
}

func setFloat(key string, value any, dst *float64) error {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	default:
		return &OptionTypeError{Key: key, Value: value, Want: "number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &OptionTypeError{Key: key, Value: value, Want: "finite number"}
	}
	*dst = f
	return nil
}
