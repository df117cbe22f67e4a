package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"tilegarden/internal/core"
	"tilegarden/internal/plugin"
)

// FromConfig builds a cache from its configuration sub-mapping. A "name"
// field selects a builtin backend; a "class" field selects a dynamically
// registered one through the plugin registry, with the flat "kwargs" mapping
// forwarded to its constructor. dirpath anchors relative local paths.
func FromConfig(spec map[string]any, dirpath string) (Cache, error) {
	if name, ok := spec["name"]; ok {
		return fromName(cast.ToString(name), spec, dirpath)
	}
	if class, ok := spec["class"]; ok {
		return fromClass(cast.ToString(class), spec)
	}
	return nil, core.NewErrorf(core.ErrCodeMissingCacheSelector,
		"missing required cache name or class: %s", serialize(spec))
}

func fromName(name string, spec map[string]any, dirpath string) (Cache, error) {
	switch strings.ToLower(name) {
	case "null":
		return NewNull(), nil
	case "test":
		var log *zap.Logger
		if cast.ToBool(spec["verbose"]) {
			log = zap.Must(zap.NewDevelopment())
		}
		return NewTestCache(log), nil
	case "disk":
		return diskFromConfig(spec, dirpath)
	case "multi":
		return multiFromConfig(spec, dirpath)
	case "redis":
		return redisFromConfig(spec)
	case "s3":
		return NewS3(S3Options{
			Bucket: cast.ToString(spec["bucket"]),
			Access: cast.ToString(spec["access"]),
			Secret: cast.ToString(spec["secret"]),
		}), nil
	default:
		return nil, core.NewErrorf(core.ErrCodeUnknownCacheBackend, "unknown cache: %s", name)
	}
}

func fromClass(class string, spec map[string]any) (Cache, error) {
	ctor, err := plugin.Resolve(class)
	if err != nil {
		return nil, core.WrapError(core.ErrCodeClassLoad, err, "%v", err)
	}
	kwargs, _ := spec["kwargs"].(map[string]any)
	built, err := ctor(kwargs)
	if err != nil {
		return nil, core.WrapError(core.ErrCodeClassLoad, err, "constructing cache %s: %v", class, err)
	}
	c, ok := built.(Cache)
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeBadPlugin, "cache class %s built a %T, which is not a tile cache", class, built)
	}
	return c, nil
}

func diskFromConfig(spec map[string]any, dirpath string) (Cache, error) {
	rawPath, ok := spec["path"]
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeMissingField, "disk cache requires a path: %s", serialize(spec))
	}
	path, err := core.EnforcedLocalPath(cast.ToString(rawPath), dirpath, "Disk cache")
	if err != nil {
		return nil, err
	}

	opts := DiskOptions{
		Dirs: cast.ToString(spec["dirs"]),
		Gzip: cast.ToBool(spec["gzip"]),
	}
	if raw, ok := spec["umask"]; ok {
		// Octal, the way umasks are written. A bad value surfaces as the raw
		// parse error rather than a configuration error.
		parsed, err := strconv.ParseInt(cast.ToString(raw), 8, 32)
		if err != nil {
			return nil, err
		}
		umask := fs.FileMode(parsed)
		opts.Umask = &umask
	}
	return NewDisk(path, opts)
}

func multiFromConfig(spec map[string]any, dirpath string) (Cache, error) {
	raw, ok := spec["tiers"].([]any)
	if !ok || len(raw) == 0 {
		return nil, core.NewErrorf(core.ErrCodeMissingField,
			"multi cache requires a non-empty tiers list: %s", serialize(spec))
	}
	tiers := make([]Cache, 0, len(raw))
	for i, tierRaw := range raw {
		tierSpec, ok := tierRaw.(map[string]any)
		if !ok {
			return nil, core.NewErrorf(core.ErrCodeMissingField,
				"multi cache tier %d must be a mapping: %s", i, serialize(tierRaw))
		}
		tier, err := FromConfig(tierSpec, dirpath)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return NewMulti(tiers), nil
}

func redisFromConfig(spec map[string]any) (Cache, error) {
	opts := RedisOptions{Revision: cast.ToString(spec["revision"])}
	if raw, ok := spec["servers"]; ok {
		servers, err := cast.ToStringSliceE(raw)
		if err != nil {
			return nil, err
		}
		opts.Servers = servers
	}
	if raw, ok := spec["lifespan"]; ok {
		lifespan, err := cast.ToIntE(raw)
		if err != nil {
			return nil, err
		}
		opts.Lifespan = lifespan
	}
	return NewRedis(opts), nil
}

func serialize(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(body)
}
