package blocklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// Table keys recognised in blocklist files.
const (
	keyVideoKeys            = "video_keys"
	keyVideoIDs             = "video_ids"
	keyVideoTitleKeywords   = "video_title_keywords"
	keyChannelIDs           = "channel_ids"
	keyChannelHandles       = "channel_handles"
	keyChannelTitleKeywords = "channel_title_keywords"
)

// LoadDirectory walks dir and merges every supported blocklist file (YAML,
// JSON, TOML) into one TableSource. Files with other extensions are skipped.
// It returns the paths that contributed, in walk order.
func LoadDirectory(dir string) (domain.TableSource, []string, error) {
	var src domain.TableSource
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		part, ok, err := LoadFile(path)
		if err != nil {
			return err
		}
		if ok {
			src.Merge(part)
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return domain.TableSource{}, nil, err
	}
	return src, files, nil
}

// LoadFile parses a single blocklist file, choosing the parser from the file
// extension. It reports false for unsupported extensions.
func LoadFile(path string) (domain.TableSource, bool, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return domain.TableSource{}, false, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return domain.TableSource{}, false, fmt.Errorf("failed to load blocklist file %s: %w", path, err)
	}

	return domain.TableSource{
		VideoKeys:            toStringValues(k.Get(keyVideoKeys)),
		VideoIDs:             toStringValues(k.Get(keyVideoIDs)),
		VideoTitleKeywords:   toStringValues(k.Get(keyVideoTitleKeywords)),
		ChannelIDs:           toStringValues(k.Get(keyChannelIDs)),
		ChannelHandles:       toStringValues(k.Get(keyChannelHandles)),
		ChannelTitleKeywords: toStringValues(k.Get(keyChannelTitleKeywords)),
	}, true, nil
}

// toStringValues converts a raw parsed value (a string or a list) into its
// non-empty string elements. Non-string list elements are skipped, so one
// bad entry does not discard the rest of the table.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		return toStringValues(stringsToAny(v))
	default:
		return nil
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
