package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName  = "make-upload.yaml"
	EnvFileName     = ".env"
	SyncTempDir     = ".sync_temp"
	DefaultDatabase = ".sync_temp/upload.db"
)

// SupportedSchemes are the profile URL schemes a transport exists for.
var SupportedSchemes = []string{"file", "scp", "ssh", "sftp", "ftp", "http", "https", "webdav", "webdavs", "s3"}

var ErrNotFound = errors.New(ConfigFileName + " not found. Please run 'make-upload init' first")

func init() {
	// report field names as they are spelled in the yaml file
	validation.ErrorTag = "yaml"
}

type Config struct {
	ProjectName string    `yaml:"project_name"`
	LocalPath   string    `yaml:"local_path,omitempty"`
	Database    string    `yaml:"database,omitempty"`
	Profiles    []Profile `yaml:"profiles"`

	// Dir is the directory the file was loaded from.
	Dir string `yaml:"-"`
}

// Profile is one upload destination.
type Profile struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// LocalPath limits the profile to a subtree of the project.
	LocalPath  string            `yaml:"local_path,omitempty"`
	PrivateKey string            `yaml:"privateKey,omitempty"`
	Password   string            `yaml:"password,omitempty"`
	Default    bool              `yaml:"default,omitempty"`
	Options    map[string]string `yaml:"options,omitempty"`
}

// Option returns a transport option or def when unset.
func (p *Profile) Option(key, def string) string {
	if v, ok := p.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// ParsedURL parses the destination URL.
func (p *Profile) ParsedURL() (*url.URL, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url for profile %s: %w", p.Name, err)
	}
	return u, nil
}

// Root is the absolute project root.
func (c *Config) Root() string {
	root := c.LocalPath
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(c.Dir, root)
	}
	return filepath.Clean(root)
}

// DatabasePath is the absolute location of the upload record database.
func (c *Config) DatabasePath() string {
	db := c.Database
	if db == "" {
		db = DefaultDatabase
	}
	if !filepath.IsAbs(db) {
		db = filepath.Join(c.Root(), filepath.FromSlash(db))
	}
	return db
}

// Profile looks a profile up by name.
func (c *Config) Profile(name string) (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// DefaultProfile returns the profile marked default.
func (c *Config) DefaultProfile() (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// Load reads, interpolates and validates dir/make-upload.yaml.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	env, err := readDotEnv(absDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(Interpolate(string(data), env)), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.Dir = absDir

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find walks up from start to the nearest directory holding a config file
// and loads it.
func Find(start string) (*Config, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotFound
		}
		dir = parent
	}
}

func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, EnvFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", EnvFileName, err)
	}
	return env, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces ${NAME} references. The process environment wins
// over the project's .env; unknown names are left untouched.
func Interpolate(text string, dotenv map[string]string) string {
	return envRef.ReplaceAllStringFunc(text, func(match string) string {
		name := envRef.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if v, ok := dotenv[name]; ok {
			return v
		}
		return match
	})
}

// ValidateConfig reports every problem of cfg at once.
func ValidateConfig(cfg *Config) error {
	var validationErrors []string

	if strings.TrimSpace(cfg.ProjectName) == "" {
		validationErrors = append(validationErrors, "project_name cannot be empty")
	}

	if root := cfg.Root(); root != "" {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			validationErrors = append(validationErrors, fmt.Sprintf("local path does not exist: %s", root))
		}
	}

	seen := map[string]bool{}
	defaults := 0
	for i := range cfg.Profiles {
		p := &cfg.Profiles[i]
		if err := validateProfile(p); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("profile %d (%s): %v", i+1, p.Name, err))
		}
		if p.Name != "" && seen[p.Name] {
			validationErrors = append(validationErrors, fmt.Sprintf("profile %d: duplicate name %s", i+1, p.Name))
		}
		seen[p.Name] = true
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		validationErrors = append(validationErrors, "only one profile can be marked default")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

func validateProfile(p *Profile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.URL, validation.Required, validation.By(checkURL)),
		validation.Field(&p.PrivateKey, validation.By(checkFileExists)),
		validation.Field(&p.LocalPath, validation.By(checkRelative)),
	)
}

func checkURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid url")
	}
	for _, scheme := range SupportedSchemes {
		if strings.EqualFold(u.Scheme, scheme) {
			if scheme != "file" && scheme != "s3" && u.Host == "" {
				return errors.New("must include a host")
			}
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func checkFileExists(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := os.Stat(ExpandHome(s)); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", s)
	}
	return nil
}

func checkRelative(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if filepath.IsAbs(s) || strings.HasPrefix(filepath.Clean(s), "..") {
		return errors.New("must be relative to the project root")
	}
	return nil
}

// ExpandHome resolves a leading "~/".
func ExpandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// Template returns a starting configuration for init.
func Template(projectName string) *Config {
	return &Config{
		ProjectName: projectName,
		Profiles: []Profile{{
			Name:       "production",
			URL:        "sftp://deploy@example.com:22/var/www/" + projectName,
			PrivateKey: "~/.ssh/id_ed25519",
			Default:    true,
		}},
	}
}

// Save writes cfg as dir/make-upload.yaml.
func Save(dir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error generating config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", ConfigFileName, err)
	}
	return nil
}

// Exists reports whether dir holds a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return !os.IsNotExist(err)
}
