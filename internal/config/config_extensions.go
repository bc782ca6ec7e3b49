package config

// ExtensionsConfig controls discovery of user-supplied extension modules
// (the registration surface for tools, commands, and lifecycle hooks).
type ExtensionsConfig struct {
	// Enabled gates extension discovery entirely.
	Enabled bool `yaml:"enabled"`

	// Directories lists filesystem paths scanned for extension manifests.
	// Each directory is walked independently; manifests within a directory
	// load in lexicographic filename order.
	Directories []string `yaml:"directories"`
}

func applyExtensionsDefaults(cfg *ExtensionsConfig) {
	if len(cfg.Directories) == 0 {
		cfg.Directories = []string{"extensions"}
	}
}
