package templates

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/logging"
)

// ManifestFile is the optional manifest looked up in the template directory
const ManifestFile = "templates.yaml"

// ErrMissingTemplate is returned when a required template has no usable image
var ErrMissingTemplate = errors.New("required template missing")

// TemplateDefinition represents one logical element in the YAML manifest
type TemplateDefinition struct {
	Name      string   `yaml:"name"`
	Files     []string `yaml:"files"`
	Threshold float64  `yaml:"threshold,omitempty"`
	Required  bool     `yaml:"required,omitempty"`
}

// TemplateFile represents the structure of a template YAML file
type TemplateFile struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// DefaultManifest describes the conventional layout: <name>.png plus an optional
// <name>_2.png per element, with only the menu trigger required
func DefaultManifest() TemplateFile {
	return TemplateFile{
		Templates: []TemplateDefinition{
			{
				Name:      string(cv.KindMenuTrigger),
				Files:     VariantFiles(cv.KindMenuTrigger),
				Threshold: cv.DefaultTriggerThreshold,
				Required:  true,
			},
			{
				Name:      string(cv.KindActedMarker),
				Files:     VariantFiles(cv.KindActedMarker),
				Threshold: cv.DefaultMarkerThreshold,
			},
			{
				Name:      string(cv.KindUndoAction),
				Files:     VariantFiles(cv.KindUndoAction),
				Threshold: cv.DefaultUndoThreshold,
			},
		},
	}
}

// VariantFiles returns the conventional file names for every variant of kind
func VariantFiles(kind cv.Kind) []string {
	files := make([]string, 0, cv.MaxVariants)
	for i := 1; i <= cv.MaxVariants; i++ {
		files = append(files, VariantFile(kind, i))
	}
	return files
}

// VariantFile returns the conventional file name of the n-th variant, counting from 1
func VariantFile(kind cv.Kind, n int) string {
	if n <= 1 {
		return string(kind) + ".png"
	}
	return fmt.Sprintf("%s_%d.png", kind, n)
}

// Status describes what was loaded for one logical element
type Status struct {
	Kind      cv.Kind
	Threshold float64
	Required  bool
	Loaded    []VariantStatus
	Missing   []string
}

// VariantStatus is one loaded reference image
type VariantStatus struct {
	Path string
	Size image.Point
}

// TemplateRegistry holds the templates of one run, keyed by logical element
type TemplateRegistry struct {
	mu         sync.RWMutex
	templates  map[cv.Kind]cv.Template
	status     map[cv.Kind]*Status
	basePath   string
	imageCache *ImageCache
	logger     *logging.Logger
}

// NewTemplateRegistry creates a new template registry
// basePath is the directory where template image files are stored
func NewTemplateRegistry(basePath string) *TemplateRegistry {
	return &TemplateRegistry{
		templates:  make(map[cv.Kind]cv.Template),
		status:     make(map[cv.Kind]*Status),
		basePath:   basePath,
		imageCache: NewImageCache(),
		logger:     logging.Discard(),
	}
}

// WithLogger sets the logger used for load warnings
func (tr *TemplateRegistry) WithLogger(logger *logging.Logger) *TemplateRegistry {
	tr.logger = logger
	return tr
}

// BasePath returns the template directory
func (tr *TemplateRegistry) BasePath() string {
	return tr.basePath
}

// Load reads templates.yaml from the base path if present, otherwise the default manifest
func (tr *TemplateRegistry) Load() error {
	manifestPath := filepath.Join(tr.basePath, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		return tr.LoadFromFile(manifestPath)
	}
	return tr.LoadManifest(DefaultManifest())
}

// LoadFromFile loads templates from a YAML manifest
func (tr *TemplateRegistry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var templateFile TemplateFile
	if err := yaml.Unmarshal(data, &templateFile); err != nil {
		return fmt.Errorf("failed to unmarshal template YAML: %w", err)
	}

	return tr.LoadManifest(templateFile)
}

// LoadManifest loads every variant image that exists on disk. Missing files are
// recorded and reported, they are not errors here; see Require.
func (tr *TemplateRegistry) LoadManifest(manifest TemplateFile) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for i, def := range manifest.Templates {
		kind, err := parseKind(def.Name)
		if err != nil {
			return fmt.Errorf("template %d: %w", i+1, err)
		}
		if len(def.Files) == 0 {
			def.Files = VariantFiles(kind)
		}
		if len(def.Files) > cv.MaxVariants {
			return fmt.Errorf("template %d (%s): %d files listed, at most %d variants allowed",
				i+1, def.Name, len(def.Files), cv.MaxVariants)
		}

		threshold := def.Threshold
		if threshold == 0 {
			threshold = defaultThreshold(kind)
		}
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("template %d (%s): %w: got %v", i+1, def.Name, cv.ErrInvalidThreshold, threshold)
		}

		tpl := cv.Template{Kind: kind, Threshold: threshold}
		status := &Status{Kind: kind, Threshold: threshold, Required: def.Required}

		for _, file := range def.Files {
			path := filepath.Join(tr.basePath, file)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				status.Missing = append(status.Missing, path)
				continue
			}

			img, err := tr.imageCache.Get(path)
			if err != nil {
				return fmt.Errorf("template %s: %w", def.Name, err)
			}
			tpl.Variants = append(tpl.Variants, img)
			status.Loaded = append(status.Loaded, VariantStatus{Path: path, Size: img.Bounds().Size()})
		}

		tr.templates[kind] = tpl
		tr.status[kind] = status

		if tpl.Empty() && !def.Required {
			tr.logger.WarnWithContext("Optional template not found, its check will be skipped", logging.Fields{
				"template": def.Name,
				"dir":      tr.basePath,
			})
		}
	}

	return nil
}

// Get retrieves a template by kind. ok is false when no variant was loaded.
func (tr *TemplateRegistry) Get(kind cv.Kind) (cv.Template, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tpl, ok := tr.templates[kind]
	if !ok || tpl.Empty() {
		return cv.Template{Kind: kind, Threshold: defaultThreshold(kind)}, false
	}
	return tpl, true
}

// Require retrieves a template that the run cannot do without
func (tr *TemplateRegistry) Require(kind cv.Kind) (cv.Template, error) {
	tpl, ok := tr.Get(kind)
	if !ok {
		return cv.Template{}, fmt.Errorf("%w: %s (expected %s in %s)",
			ErrMissingTemplate, kind, VariantFile(kind, 1), tr.basePath)
	}
	return tpl, nil
}

// Register adds a template to the registry programmatically
func (tr *TemplateRegistry) Register(tpl cv.Template) error {
	if _, err := parseKind(string(tpl.Kind)); err != nil {
		return err
	}
	if len(tpl.Variants) > cv.MaxVariants {
		return fmt.Errorf("template %s: at most %d variants allowed", tpl.Kind, cv.MaxVariants)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.templates[tpl.Kind] = tpl
	return nil
}

// Statuses reports every element in load order
func (tr *TemplateRegistry) Statuses() []Status {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]Status, 0, len(cv.Kinds))
	for _, kind := range cv.Kinds {
		if s, ok := tr.status[kind]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// CacheStats returns image cache statistics
func (tr *TemplateRegistry) CacheStats() CacheStats {
	return tr.imageCache.Stats()
}

func parseKind(name string) (cv.Kind, error) {
	for _, kind := range cv.Kinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	if name == "" {
		return "", errors.New("name cannot be empty")
	}
	return "", fmt.Errorf("unknown template name %q", name)
}

func defaultThreshold(kind cv.Kind) float64 {
	switch kind {
	case cv.KindUndoAction:
		return cv.DefaultUndoThreshold
	case cv.KindActedMarker:
		return cv.DefaultMarkerThreshold
	default:
		return cv.DefaultTriggerThreshold
	}
}
