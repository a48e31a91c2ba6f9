// Package config loads service settings from defaults, an optional YAML file
// and LISTACOMPRA_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "LISTACOMPRA_"
	ConfigFileEnv = EnvPrefix + "CONFIG"

	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	Port    int    `yaml:"port"`
	Backend string `yaml:"backend"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`

	Firebase FirebaseConfig `yaml:"firebase"`

	Session struct {
		TTL                 time.Duration `yaml:"ttl"`
		RevalidateOnRestore bool          `yaml:"revalidateOnRestore"`
		SecureCookies       bool          `yaml:"secureCookies"`
		Secret              string        `yaml:"secret"`
	} `yaml:"session"`

	RateLimit struct {
		Logins int           `yaml:"logins"`
		Window time.Duration `yaml:"window"`
	} `yaml:"rateLimit"`

	Websocket struct {
		OriginPatterns []string `yaml:"originPatterns"`
	} `yaml:"websocket"`

	Admin struct {
		Username     string `yaml:"username"`
		PasswordHash string `yaml:"passwordHash"`
	} `yaml:"admin"`

	Archive struct {
		RetentionDays int      `yaml:"retentionDays"`
		S3            S3Config `yaml:"s3"`
	} `yaml:"archive"`
}

type FirebaseConfig struct {
	ProjectID       string `yaml:"projectId"`
	CredentialsFile string `yaml:"credentialsFile"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// Enabled reports whether enough is configured to talk to a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

var defaults = map[string]any{
	"port":                        8080,
	"backend":                     BackendSQLite,
	"log.level":                   "info",
	"log.format":                  "text",
	"db.path":                     "listacompra.db",
	"firebase.projectId":          "",
	"firebase.credentialsFile":    "",
	"session.ttl":                 "720h",
	"session.revalidateOnRestore": false,
	"session.secureCookies":       false,
	"session.secret":              "",
	"rateLimit.logins":            10,
	"rateLimit.window":            "1m",
	"websocket.originPatterns":    []string{},
	"admin.username":              "admin",
	"admin.passwordHash":          "",
	"archive.retentionDays":       30,
	"archive.s3.endpoint":         "",
	"archive.s3.bucket":           "",
	"archive.s3.region":           "auto",
	"archive.s3.accessKey":        "",
	"archive.s3.secretKey":        "",
}

// Load builds the configuration. The YAML file named by LISTACOMPRA_CONFIG is
// optional, but when named it must exist.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	existing := k.Raw()
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, val string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			if key == "CONFIG" {
				return "", nil
			}
			return canonicalizeEnvKey(key, existing), val
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := new(Config)
	err = k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for the sqlite backend")
		}
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase.projectId is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.RateLimit.Logins <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit.logins and rateLimit.window must be positive")
	}
	return nil
}

// canonicalizeEnvKey maps SESSION_REVALIDATEONRESTORE to
// session.revalidateOnRestore by matching each segment against known keys.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
