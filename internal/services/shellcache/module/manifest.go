package module

import (
	perr "labelscan/internal/platform/errors"
	"labelscan/internal/services/shellcache/domain"

	"github.com/spf13/viper"
)

// LoadManifest builds the manifest from env defaults, an optional YAML or JSON file,
// and LABELSCAN_MANIFEST_* overrides, in increasing priority
func LoadManifest(o Options) (domain.Manifest, error) {
	v := viper.New()
	v.SetDefault("version", o.Version)
	v.SetDefault("required", o.Required)
	v.SetDefault("optional", o.Optional)
	v.SetEnvPrefix("LABELSCAN_MANIFEST")
	v.AutomaticEnv()

	if o.ManifestFile != "" {
		v.SetConfigFile(o.ManifestFile)
		if err := v.ReadInConfig(); err != nil {
			return domain.Manifest{}, perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read manifest %s", o.ManifestFile), "manifest")
		}
	}

	var m domain.Manifest
	if err := v.Unmarshal(&m); err != nil {
		return domain.Manifest{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "decode manifest")
	}
	if err := m.Validate(); err != nil {
		return domain.Manifest{}, err
	}
	return m, nil
}
